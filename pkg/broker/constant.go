package broker

import "time"

const (
	mqttTimeout        = 1 * time.Second
	disconnectQuiesce  = 250
	defaultQueueSize   = 1024
	timestampLayout    = "2006-01-02T15:04:05.000Z"
	defaultConnTimeout = 5 * time.Second
)
