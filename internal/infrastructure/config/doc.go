// Package config handles loading and validating MQTT helper configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MQTTHELPER_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - mqtt.tls.insecure disables certificate verification; development only
//
// Usage:
//
//	cfg, err := config.Load("configs/mqtthelper.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
