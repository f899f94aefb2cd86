package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/journal"
	"github.com/nerrad567/gray-logic-mqtthelper/migrations"
)

// offlineClientID satisfies config validation for commands that never
// talk to a broker.
const offlineClientID = "mqtthelper-offline"

func newJournalCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect or prune the operation journal",
	}
	cmd.AddCommand(
		newJournalListCommand(root),
		newJournalSummaryCommand(root),
		newJournalPruneCommand(root),
		newJournalMigrateCommand(root),
	)
	return cmd
}

// openJournal opens the configured journal database without migrating it.
func openJournal(cmd *cobra.Command, root *rootOptions) (*database.DB, error) {
	cfg, err := root.loadConfig(cmd.Flags(), func(c *config.Config) {
		if c.MQTT.Broker.ClientID == "" {
			c.MQTT.Broker.ClientID = offlineClientID
		}
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return db, nil
}

// withJournal opens and migrates the configured journal database and calls fn.
func withJournal(cmd *cobra.Command, root *rootOptions, fn func(ctx context.Context, repo journal.Repository) error) error {
	db, err := openJournal(cmd, root)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly handle

	ctx := cmd.Context()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrating journal: %w", err)
	}
	return fn(ctx, journal.NewSQLiteRepository(db.DB))
}

// Output formats of the journal subcommands.
const (
	outputJSON  = "json"
	outputTable = "table"
)

func checkOutput(format string) error {
	switch format {
	case outputJSON, outputTable:
		return nil
	default:
		return fmt.Errorf("--output must be %q or %q, got %q", outputJSON, outputTable, format)
	}
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// sinceFlag turns a look-back duration into a lower time bound; zero means all.
func sinceFlag(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-d)
}

// writeEntryTable prints entries as an aligned table with relative times.
func writeEntryTable(out io.Writer, res *journal.ListResult) error {
	table := uitable.New()
	table.MaxColWidth = 48
	table.AddRow("WHEN", "OPERATION", "CLIENT", "OUTCOME", "CODE", "TOPIC", "DURATION")
	for _, e := range res.Entries {
		table.AddRow(
			humanize.Time(e.CreatedAt),
			e.Operation,
			e.ClientID,
			e.Outcome,
			e.Code,
			e.Topic,
			(time.Duration(e.DurationMS) * time.Millisecond).String(),
		)
	}
	_, err := fmt.Fprintf(out, "%s\n\n%s of %s entries\n", table,
		humanize.Comma(int64(len(res.Entries))), humanize.Comma(int64(res.Total)))
	return err
}

func writeSummaryTable(out io.Writer, summary map[string]map[string]int) error {
	table := uitable.New()
	table.AddRow("OPERATION", "OUTCOME", "COUNT")
	for _, op := range []string{journal.OperationConnect, journal.OperationSubscribe, journal.OperationPublish} {
		outcomes := summary[op]
		keys := make([]string, 0, len(outcomes))
		for k := range outcomes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, outcome := range keys {
			table.AddRow(op, outcome, humanize.Comma(int64(outcomes[outcome])))
		}
	}
	_, err := fmt.Fprintln(out, table)
	return err
}

func newJournalListCommand(root *rootOptions) *cobra.Command {
	var (
		filter journal.Filter
		since  time.Duration
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return withJournal(cmd, root, func(ctx context.Context, repo journal.Repository) error {
				filter.Since = sinceFlag(since)
				res, err := repo.List(ctx, filter)
				if err != nil {
					return err
				}
				if output == outputTable {
					return writeEntryTable(cmd.OutOrStdout(), res)
				}
				return writeIndented(cmd.OutOrStdout(), res)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&filter.Operation, "operation", "", "connect, subscribe or publish")
	fs.StringVar(&filter.ClientID, "client", "", "client identifier")
	fs.StringVar(&filter.Outcome, "outcome", "", "outcome label, e.g. acknowledged or timed_out")
	fs.DurationVar(&since, "since", 0, "only entries newer than this (e.g. 24h)")
	fs.IntVar(&filter.Limit, "limit", 50, "maximum entries (max 500)")
	fs.IntVar(&filter.Offset, "offset", 0, "entries to skip")
	fs.StringVarP(&output, "output", "o", outputJSON, "output format: json or table")
	return cmd
}

func newJournalSummaryCommand(root *rootOptions) *cobra.Command {
	var (
		since  time.Duration
		output string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count journal entries per operation and outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return withJournal(cmd, root, func(ctx context.Context, repo journal.Repository) error {
				summary, err := repo.Summary(ctx, sinceFlag(since))
				if err != nil {
					return err
				}
				if output == outputTable {
					return writeSummaryTable(cmd.OutOrStdout(), summary)
				}
				return writeIndented(cmd.OutOrStdout(), summary)
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this (e.g. 24h)")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: json or table")
	return cmd
}

func newJournalPruneCommand(root *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withJournal(cmd, root, func(ctx context.Context, repo journal.Repository) error {
				n, err := repo.Prune(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				cmd.Printf("pruned %s entries\n", humanize.Comma(n))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the oldest entry to keep")
	return cmd
}

func newJournalMigrateCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the journal schema",
	}

	run := func(fn func(ctx context.Context, db *database.DB, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db, err := openJournal(cmd, root)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // closed on exit
			return fn(cmd.Context(), db, cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending schema migrations",
			Args:  cobra.NoArgs,
			RunE:  run(writeMigrationStatus),
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending schema migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, db *database.DB, out io.Writer) error {
				_, pending, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return err
				}
				if err := db.Migrate(ctx, migrations.FS); err != nil {
					return fmt.Errorf("migrating journal: %w", err)
				}
				_, err = fmt.Fprintf(out, "applied %d migrations\n", len(pending))
				return err
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent schema migration",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, db *database.DB, out io.Writer) error {
				applied, _, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					_, err = fmt.Fprintln(out, "no migrations to roll back")
					return err
				}
				if err := db.MigrateDown(ctx, migrations.FS); err != nil {
					return fmt.Errorf("rolling back journal: %w", err)
				}
				_, err = fmt.Fprintf(out, "rolled back %s\n", applied[len(applied)-1].Version)
				return err
			}),
		},
	)
	return cmd
}

func writeMigrationStatus(ctx context.Context, db *database.DB, out io.Writer) error {
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.AddRow("VERSION", "STATE", "APPLIED")
	for _, r := range applied {
		table.AddRow(r.Version, "applied", humanize.Time(r.AppliedAt))
	}
	for _, m := range pending {
		table.AddRow(m.Version, "pending", "-")
	}
	_, err = fmt.Fprintln(out, table)
	return err
}
