package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
)

// configEnv names the config file when --config is not given.
const configEnv = "MQTTHELPER_CONFIG"

// rootOptions holds the persistent flags shared by every subcommand.
// Flags override the config file and MQTTHELPER_* environment variables.
type rootOptions struct {
	configPath string
	host       string
	port       int
	clientID   string
	topics     string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mqtthelper",
		Short:         "Synchronous MQTT client: confirmed subscriptions and acknowledged publishes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newListenCommand(opts),
		newPublishCommand(opts),
		newEchoCommand(opts),
		newJournalCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func (o *rootOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "path to the YAML config file (default $"+configEnv+")")
	fs.StringVar(&o.host, "host", "", "broker host")
	fs.IntVar(&o.port, "port", 0, "broker port")
	fs.StringVar(&o.clientID, "client-id", "", "MQTT client identifier")
	fs.StringVar(&o.topics, "topics", "", "comma-separated topics to subscribe on connect")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// loadConfig loads the configuration and applies the flags that were set.
// adjust, when non-nil, runs last, before validation.
func (o *rootOptions) loadConfig(fs *pflag.FlagSet, adjust func(*config.Config)) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	return config.LoadWith(path, func(c *config.Config) {
		if fs.Changed("host") {
			c.MQTT.Broker.Host = o.host
		}
		if fs.Changed("port") {
			c.MQTT.Broker.Port = o.port
		}
		if fs.Changed("client-id") {
			c.MQTT.Broker.ClientID = o.clientID
		}
		if fs.Changed("topics") {
			c.MQTT.Topics = o.topics
		}
		if fs.Changed("log-level") {
			c.Logging.Level = o.logLevel
		}
		if adjust != nil {
			adjust(c)
		}
	})
}

// setup loads the configuration and builds the logger for a subcommand.
func (o *rootOptions) setup(cmd *cobra.Command, adjust func(*config.Config)) (*config.Config, *logging.Logger, error) {
	cfg, err := o.loadConfig(cmd.Flags(), adjust)
	if err != nil {
		return nil, nil, err
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded",
		"command", cmd.Name(),
		"broker_host", cfg.MQTT.Broker.Host,
		"broker_port", cfg.MQTT.Broker.Port,
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return cfg, log, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("mqtthelper %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
