package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// errEchoMissing is returned when a published message did not come back.
var errEchoMissing = errors.New("echo not received")

// echoOptions controls one echo run.
type echoOptions struct {
	topic string
	count int
	wait  time.Duration
}

func newEchoCommand(root *rootOptions) *cobra.Command {
	var eo echoOptions

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Subscribe to a topic, publish to it and wait for each message to come back",
		Long: `echo is a broker smoke test. It subscribes to a single topic with QoS 1,
publishes --count messages to it and waits for each one to be delivered back.
Any missing acknowledgment or echo fails the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.setup(cmd, func(c *config.Config) {
				if eo.topic == "" {
					eo.topic = "mqtthelper/echo/" + c.MQTT.Broker.ClientID
				}
				c.MQTT.Topics = eo.topic
				c.MQTT.Subscribe.QoS = 1
				c.MQTT.Subscribe.Policy = "escalate"
			})
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck // stdout sync errors are not actionable

			opts, err := helperOptions(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, log, opts, mqtt.NewPahoTransport(transportOptions(cfg)))
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := a.close(); closeErr != nil {
					log.Error("error during shutdown", "error", closeErr)
				}
			}()

			return a.run(ctx, func(ctx context.Context) error {
				return echo(ctx, a.helper, log, eo, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&eo.topic, "topic", "", "echo topic (default mqtthelper/echo/<client-id>)")
	cmd.Flags().IntVarP(&eo.count, "count", "n", 1, "number of messages to send")
	cmd.Flags().DurationVarP(&eo.wait, "wait", "w", 5*time.Second, "how long to wait for each echo")
	return cmd
}

// echo connects with eo.topic subscribed and round-trips eo.count messages.
func echo(ctx context.Context, h *helper.Helper, log *logging.Logger, eo echoOptions, out io.Writer) error {
	received := make(chan []byte, eo.count+1)
	onMessage := func(topic string, payload []byte) error {
		if topic != eo.topic {
			return nil
		}
		select {
		case received <- bytes.Clone(payload):
		default:
			log.Warn("echo buffer full, dropping message", "topic", topic)
		}
		return nil
	}

	if code, err := h.Connect(ctx, onMessage); err != nil {
		return fmt.Errorf("connect failed with code %d (%s): %w", int(code), code, err)
	}

	var missing int
	for i := 1; i <= eo.count; i++ {
		payload := []byte(fmt.Sprintf("echo %d %s", i, uuid.NewString()))
		start := time.Now()

		res, err := h.Publish(ctx, eo.topic, payload, 1, 0)
		if err != nil {
			return fmt.Errorf("publish %d: %w", i, err)
		}
		if !res.Acknowledged {
			log.Warn("echo publish not acknowledged", "seq", i, "code", res.Code)
			missing++
			continue
		}

		if waitForEcho(ctx, received, payload, eo.wait) {
			fmt.Fprintf(out, "echo %d: %s round trip\n", i, time.Since(start).Round(time.Millisecond)) //nolint:errcheck // best-effort progress output
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("echo not received", "seq", i, "wait", eo.wait.String())
		missing++
	}

	if missing > 0 {
		return fmt.Errorf("%w: %d of %d", errEchoMissing, missing, eo.count)
	}
	return nil
}

// waitForEcho waits for payload to arrive, discarding stale echoes.
func waitForEcho(ctx context.Context, received <-chan []byte, payload []byte, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case got := <-received:
			if bytes.Equal(got, payload) {
				return true
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
