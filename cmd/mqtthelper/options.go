package main

import (
	"strings"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// helperOptions maps the mqtt section of the configuration onto helper.Options.
func helperOptions(cfg *config.Config) (helper.Options, error) {
	policy, err := helper.ParseRejectionPolicy(cfg.MQTT.Subscribe.Policy)
	if err != nil {
		return helper.Options{}, err
	}

	return helper.Options{
		ClientID: cfg.MQTT.Broker.ClientID,
		Host:     cfg.MQTT.Broker.Host,
		Port:     cfg.MQTT.Broker.Port,
		Topics:   cfg.MQTT.Topics,
		TLS: mqtt.TLSFiles{
			CACert:     cfg.MQTT.TLS.CACert,
			ClientCert: cfg.MQTT.TLS.ClientCert,
			ClientKey:  cfg.MQTT.TLS.ClientKey,
			Insecure:   cfg.MQTT.TLS.Insecure,
		},
		Keepalive:            cfg.GetKeepalive(),
		SubscribeQoS:         byte(cfg.MQTT.Subscribe.QoS), //nolint:gosec // validated to 0 or 1
		SubscribeWait:        cfg.GetSubscribeWait(),
		PublishTimeout:       cfg.GetPublishTimeout(),
		ConnectRetryInterval: cfg.GetRetryInterval(),
		MaxConnectAttempts:   uint(cfg.MQTT.Connect.MaxAttempts), //nolint:gosec // validated non-negative
		Rejected:             policy,
	}, nil
}

// transportOptions maps the configuration onto the paho adapter's options.
func transportOptions(cfg *config.Config) mqtt.TransportOptions {
	return mqtt.TransportOptions{
		ClientID:       cfg.MQTT.Broker.ClientID,
		Username:       cfg.MQTT.Auth.Username,
		Password:       cfg.MQTT.Auth.Password,
		CleanSession:   cfg.MQTT.Broker.CleanSession,
		ConnectTimeout: cfg.GetConnectTimeout(),
		Debug:          strings.EqualFold(cfg.Logging.Level, "debug"),
	}
}
