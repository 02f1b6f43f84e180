package config

import (
	"modbushil/pkg/broker"
	"modbushil/pkg/registry"
	"modbushil/pkg/simulator"
)

type Config struct {
	Registry  *registry.Registry
	Simulator *simulator.Simulator
	Broker    *broker.MqttBroker
}
