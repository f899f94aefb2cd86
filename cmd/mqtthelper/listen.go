package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

func newListenCommand(root *rootOptions) *cobra.Command {
	var printPayloads bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect, confirm subscriptions and log incoming messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.setup(cmd, nil)
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

			var out io.Writer
			if printPayloads {
				out = cmd.OutOrStdout()
			}
			return a.run(ctx, func(ctx context.Context) error {
				return listen(ctx, a.helper, log, out)
			})
		},
	}

	cmd.Flags().BoolVarP(&printPayloads, "print", "p", false, "write each message as \"<topic> <payload>\" to stdout")
	return cmd
}

// listen connects and blocks until ctx is cancelled. Unconfirmed
// subscriptions are logged but do not end the session; the broker may still
// grant them later.
func listen(ctx context.Context, h *helper.Helper, log *logging.Logger, out io.Writer) error {
	onMessage := func(topic string, payload []byte) error {
		log.Info("message received", "topic", topic, "bytes", len(payload))
		if out != nil {
			if _, err := fmt.Fprintf(out, "%s %s\n", topic, payload); err != nil {
				return fmt.Errorf("writing message: %w", err)
			}
		}
		return nil
	}

	code, err := h.Connect(ctx, onMessage)
	switch {
	case errors.Is(err, helper.ErrSubscriptionIncomplete):
		status := h.SubscriptionStatus()
		log.Warn("listening with unconfirmed subscriptions", "pending", status.Pending)
	case err != nil:
		return fmt.Errorf("connect failed with code %d (%s): %w", int(code), code, err)
	}

	log.Info("listening", "state", string(h.State()), "topics", h.Options().Topics)
	<-ctx.Done()
	return nil
}
