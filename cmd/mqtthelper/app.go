package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/api"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/journal"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/telemetry"
	"github.com/nerrad567/gray-logic-mqtthelper/migrations"
)

// app wires the helper to its optional sinks: Prometheus metrics and the
// admin server, the SQLite journal and InfluxDB.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	helper   *helper.Helper
	registry *prometheus.Registry

	db       *database.DB
	journal  *journal.SQLiteRepository
	recorder *journal.Recorder
	influx   *influxdb.Client
	admin    *api.Server
}

// newApp opens the configured sinks and builds the helper over transport.
// On error everything opened so far is closed again.
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger, opts helper.Options, transport mqtt.Transport) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			if closeErr := a.close(); closeErr != nil {
				log.Error("error closing after failed start", "error", closeErr)
			}
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	observers := []helper.Observer{metrics}

	if cfg.Journal.Enabled {
		a.db, err = database.Open(cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		if err = a.db.Migrate(ctx, migrations.FS); err != nil {
			return nil, fmt.Errorf("migrating journal: %w", err)
		}
		a.journal = journal.NewSQLiteRepository(a.db.DB)
		a.recorder = journal.NewRecorder(a.journal, log.With("component", "journal"), 0)
		observers = append(observers, a.recorder)
		log.Info("journal enabled", "path", a.db.Path())
	}

	if cfg.InfluxDB.Enabled {
		a.influx, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		a.influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		observers = append(observers, telemetry.NewInfluxRecorder(a.influx, opts.ClientID))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	a.helper = helper.New(opts, transport, log.With("component", "helper"), helper.WithObservers(observers...))

	if cfg.Metrics.Enabled {
		deps := api.Deps{
			Config:   cfg.Metrics,
			Logger:   log.With("component", "admin"),
			Helper:   a.helper,
			Gatherer: a.registry,
			ClientID: cfg.MQTT.Broker.ClientID,
			Checks:   map[string]api.HealthCheck{},
			Version:  version,
		}
		if a.db != nil {
			deps.Journal = a.journal
			deps.Checks["journal"] = a.db.HealthCheck
		}
		if a.influx != nil {
			deps.Checks["influxdb"] = a.influx.HealthCheck
		}
		a.admin, err = api.New(deps)
		if err != nil {
			return nil, fmt.Errorf("creating admin server: %w", err)
		}
	}

	return a, nil
}

// run executes session alongside the journal writer and admin server.
//
// The sinks outlive the session so its final outcomes are still recorded;
// they stop once session returns and the helper has disconnected. A failing
// admin server cancels the session context.
func (a *app) run(ctx context.Context, session func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	sinkCtx, stopSinks := context.WithCancel(context.Background())

	if a.recorder != nil {
		g.Go(func() error { return a.recorder.Run(sinkCtx) })
	}
	if a.admin != nil {
		g.Go(func() error { return a.admin.Run(sinkCtx) })
	}

	g.Go(func() error {
		defer stopSinks()
		err := session(gctx)
		a.helper.Disconnect()
		return err
	})

	return g.Wait()
}

// close releases the sinks. It is safe on a partially built app.
func (a *app) close() error {
	var result *multierror.Error

	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing InfluxDB: %w", err))
		}
	}
	if a.db != nil {
		if a.recorder != nil && a.recorder.Dropped() > 0 {
			a.log.Warn("journal entries dropped", "count", a.recorder.Dropped())
		}
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing journal: %w", err))
		}
	}

	return result.ErrorOrNil()
}
