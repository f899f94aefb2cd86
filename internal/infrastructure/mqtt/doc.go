// Package mqtt provides the asynchronous MQTT transport used by the helper.
//
// This package manages:
//   - The Transport boundary: connect, subscribe and publish calls that return
//     immediately, with results delivered later through Events callbacks
//   - PahoTransport, the paho.mqtt.golang implementation of Transport
//   - TLS material loading for mutual-TLS brokers
//   - Comma-separated topic list parsing
//
// # Architecture
//
// paho reports every operation through a token. PahoTransport waits on each
// token in its own goroutine and hands the result to a single dispatcher
// goroutine, which invokes the Events callbacks one at a time:
//
//	Subscribe/Publish ─▶ paho token ─▶ waiter goroutine ─▶ dispatcher ─▶ Events
//
// The dispatcher only runs between StartLoop and StopLoop. Callbacks are never
// invoked from inside Subscribe or Publish, so callers can register the
// returned id under their own lock before the acknowledgment can arrive.
//
// # Acceptance Codes
//
// Subscribe and Publish return ResultSuccess when the request was handed to
// paho, ResultNoConn without a connection, ResultInvalid for a bad topic or
// QoS and ResultProtocol when paho refused the request outright.
//
// # Security Considerations
//
//   - Supplying a client certificate requires the matching key (both or neither)
//   - TLS 1.2 is the minimum version
//   - TLSFiles.Insecure skips broker certificate verification; development only
//
// # Usage
//
//	tr := mqtt.NewPahoTransport(mqtt.TransportOptions{ClientID: "gateway-01"})
//	tr.SetEvents(mqtt.Events{
//	    OnConnect: func(code int) { log.Printf("connect result %d", code) },
//	})
//	tr.StartLoop()
//	defer tr.StopLoop()
//	_ = tr.Connect("localhost", 1883, 60*time.Second)
package mqtt
