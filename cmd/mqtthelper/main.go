// mqtthelper - synchronous MQTT client tool
//
// mqtthelper drives a broker connection through the helper's blocking
// façade: connect returns only once subscriptions are confirmed, and QoS 1
// publishes report whether the broker acknowledged them in time.
//
// Subcommands:
//   - listen: connect, confirm subscriptions and log messages until interrupted
//   - publish: send one message and report the acknowledgment
//   - echo: round-trip smoke test through the broker
//   - journal: inspect or prune the SQLite operation journal
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C and SIGTERM so sessions disconnect cleanly
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
