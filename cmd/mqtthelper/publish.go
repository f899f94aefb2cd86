package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// errNotAcknowledged is returned when a QoS 1 publish was not acknowledged in time.
var errNotAcknowledged = errors.New("publish not acknowledged")

// publishOutput is the JSON line printed by the publish command.
type publishOutput struct {
	Topic        string `json:"topic"`
	QoS          byte   `json:"qos"`
	Code         int    `json:"code"`
	MessageID    uint64 `json:"message_id"`
	Acknowledged bool   `json:"acknowledged"`
	LatencyMS    int64  `json:"latency_ms"`
}

func newPublishCommand(root *rootOptions) *cobra.Command {
	var (
		qos     int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish <topic> <payload>",
		Short: "Publish one message and report whether the broker acknowledged it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A one-shot publish does not subscribe unless --topics is given.
			cfg, log, err := root.setup(cmd, func(c *config.Config) {
				if !cmd.Flags().Changed("topics") {
					c.MQTT.Topics = ""
				}
				if cmd.Flags().Changed("qos") {
					c.MQTT.Publish.QoS = qos
				}
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

			publishQoS := byte(cfg.MQTT.Publish.QoS) //nolint:gosec // validated to 0 or 1
			return a.run(ctx, func(ctx context.Context) error {
				return publishOnce(ctx, a.helper, args[0], []byte(args[1]), publishQoS, timeout, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().IntVarP(&qos, "qos", "q", 1, "quality of service, 0 or 1 (overrides mqtt.publish.qos)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "acknowledgment timeout (default from config)")
	return cmd
}

// publishOnce connects, publishes one message and prints the result as JSON.
func publishOnce(ctx context.Context, h *helper.Helper, topic string, payload []byte, qos byte, timeout time.Duration, out io.Writer) error {
	if code, err := h.Connect(ctx, nil); err != nil && !errors.Is(err, helper.ErrSubscriptionIncomplete) {
		return fmt.Errorf("connect failed with code %d (%s): %w", int(code), code, err)
	}

	start := time.Now()
	res, err := h.Publish(ctx, topic, payload, qos, timeout)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	line, err := json.Marshal(publishOutput{
		Topic:        topic,
		QoS:          res.QoS,
		Code:         res.Code,
		MessageID:    res.MessageID,
		Acknowledged: res.Acknowledged,
		LatencyMS:    time.Since(start).Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(line)); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	switch {
	case res.Code != 0:
		return fmt.Errorf("publish refused by client with code %d", res.Code)
	case qos == 1 && !res.Acknowledged:
		return errNotAcknowledged
	}
	return nil
}
