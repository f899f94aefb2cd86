// Package helper turns an asynchronous MQTT transport into blocking calls.
//
// Connect returns once the broker has answered and every configured topic
// subscription is confirmed, refused, or has timed out. Publish with QoS 1
// returns once the broker acknowledges the message or the timeout elapses.
//
// # Result Codes
//
// Connect returns a Code together with an error wrapping one of the
// package's sentinel errors:
//
//	0      success
//	1-5    broker refusal, passed through from CONNACK
//	17     connected, but some subscriptions were not confirmed in time
//	18     connected, but subscriptions were rejected (PolicyEscalate only)
//	-1     TLS material could not be loaded
//	-2     options were incomplete when the helper was built
//	-3     no connect result before the attempt cap or context end
//
// A publish timeout is not an error: PublishResult.Acknowledged is false.
//
// # Concurrency
//
// Transport notifications arrive on the transport's dispatcher goroutine.
// Every piece of state they touch is guarded by a mutex, and waits block on
// channels the notification handlers close. Connect and Disconnect are
// serialised; Publish calls may overlap, each waiting for its own id.
//
// # Usage
//
//	h := helper.New(helper.Options{
//	    ClientID: "sensor-gw",
//	    Host:     "localhost",
//	    Port:     1883,
//	    Topics:   "sensors/+/temp,alerts/#",
//	}, mqtt.NewPahoTransport(mqtt.TransportOptions{ClientID: "sensor-gw"}), logger)
//	defer h.Disconnect()
//
//	code, err := h.Connect(ctx, func(topic string, payload []byte) error {
//	    fmt.Printf("%s: %s\n", topic, payload)
//	    return nil
//	})
//	if code != helper.CodeSuccess {
//	    return err
//	}
//	res, err := h.Publish(ctx, "alerts/test", []byte("hello"), 1, 0)
package helper
