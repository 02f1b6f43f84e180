// Package broker forwards the exposed data of simulated entities to MQTT.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"

	"modbushil/pkg/runtime"
)

type Options struct {
	Broker         string        `json:"broker"`
	ClientID       string        `json:"client-id"`
	Username       string        `json:"-"`
	Password       string        `json:"-"`
	QoS            byte          `json:"qos"`
	ConnectTimeout time.Duration `json:"connect-timeout"`
	QueueSize      int           `json:"queue-size"`
}

// client is the part of mqtt.Client used for publishing.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type message struct {
	session string
	eid     string
	simTime int64
	at      time.Time
	values  map[string]interface{}
}

type MqttBroker struct {
	client client
	qos    byte
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan message
	done   chan struct{}

	published *atomic.Int64
	dropped   *atomic.Int64
}

// NewMqttBroker connects to o.Broker. Without a broker URL the returned broker
// discards everything.
func NewMqttBroker(o Options) (*MqttBroker, error) {
	if len(o.Broker) == 0 {
		klog.V(2).InfoS("MQTT broker not configured, publishing disabled")
		return newMqttBroker(nil, o), nil
	}
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			klog.V(2).InfoS("Lost MQTT connection", "broker", o.Broker, "err", err)
		})
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s timed out after %s", o.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", o.Broker, err)
	}
	klog.V(1).InfoS("Succeed to connect MQTT broker", "broker", o.Broker, "clientId", o.ClientID)
	return newMqttBroker(c, o), nil
}

func newMqttBroker(c client, o Options) *MqttBroker {
	size := o.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	b := &MqttBroker{
		client:    c,
		qos:       o.QoS,
		now:       time.Now,
		queue:     make(chan message, size),
		done:      make(chan struct{}),
		published: atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
	}
	if c == nil {
		close(b.done)
		return b
	}
	go b.run()
	return b
}

func (b *MqttBroker) Enabled() bool {
	return b.client != nil
}

func Topic(session, eid string) string {
	return fmt.Sprintf("data/%s/v1/%s", session, eid)
}

// Publish queues values without blocking. A full queue drops the data.
func (b *MqttBroker) Publish(session, eid string, simTime int64, values map[string]interface{}) {
	if b.client == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- message{session: session, eid: eid, simTime: simTime, at: b.now(), values: values}:
	default:
		b.dropped.Inc()
		klog.V(2).InfoS("Failed to queue MQTT message, queue full", "eid", eid, "time", simTime)
	}
}

func (b *MqttBroker) run() {
	defer close(b.done)
	for msg := range b.queue {
		topic := Topic(msg.session, msg.eid)
		payload, err := json.Marshal(encode(msg))
		if err != nil {
			klog.V(1).InfoS("Failed to marshal MQTT message", "topic", topic, "err", err)
			continue
		}
		token := b.client.Publish(topic, b.qos, false, payload)
		switch {
		case !token.WaitTimeout(mqttTimeout):
			klog.V(1).InfoS("Failed to publish MQTT, timed out", "topic", topic, "timeout", mqttTimeout)
		case token.Error() != nil:
			klog.V(1).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
		default:
			b.published.Inc()
			klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic)
		}
	}
}

func encode(msg message) runtime.PublishData {
	names := make([]string, 0, len(msg.values))
	for name := range msg.values {
		names = append(names, name)
	}
	sort.Strings(names)
	points := make([]runtime.PointData, 0, len(names))
	for _, name := range names {
		points = append(points, runtime.PointData{DataPointId: name, Value: msg.values[name]})
	}
	return runtime.PublishData{Payload: runtime.Payload{Data: []runtime.TimeSeriesData{{
		Timestamp: msg.at.UTC().Format(timestampLayout),
		SimTime:   msg.simTime,
		Values:    points,
	}}}}
}

// Published and Dropped count messages since creation.
func (b *MqttBroker) Published() int64 { return b.published.Load() }
func (b *MqttBroker) Dropped() int64   { return b.dropped.Load() }

// Close drains the queue until ctx ends and disconnects.
func (b *MqttBroker) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	var err error
	select {
	case <-b.done:
	case <-ctx.Done():
		err = ctx.Err()
		klog.V(2).InfoS("Failed to drain MQTT queue", "pending", len(b.queue), "err", err)
	}
	if b.client != nil {
		b.client.Disconnect(disconnectQuiesce)
	}
	return err
}
