package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/encoding"
)

// MQTTConfig holds broker connection settings
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Topic returns the topic a radio group maps to
func Topic(group int) string {
	return fmt.Sprintf("snore/group/%d", group)
}

// DialMQTT connects to the broker
func DialMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// MQTTRadio carries radio messages through a broker, one topic per group
type MQTTRadio struct {
	link
	client     mqtt.Client
	codec      encoding.Codec
	qos        byte
	subscribed string
}

// NewMQTTRadio wraps a connected client
func NewMQTTRadio(client mqtt.Client, qos byte, group int, serial uint32, codec encoding.Codec, logger *zap.Logger) *MQTTRadio {
	return &MQTTRadio{
		link:   link{group: group, serial: serial, logger: orNop(logger)},
		client: client,
		codec:  codec,
		qos:    qos,
	}
}

// OnReceive sets the handler and subscribes to the group's topic
func (r *MQTTRadio) OnReceive(h Handler) {
	r.link.OnReceive(h)
	if err := r.subscribe(Topic(r.Group())); err != nil {
		r.logger.Error("mqtt subscribe failed", zap.Error(err))
	}
}

// SetGroup switches group, moving the subscription if one is active
func (r *MQTTRadio) SetGroup(group int) {
	r.link.SetGroup(group)
	if r.subscribed == "" {
		return
	}
	if err := r.subscribe(Topic(group)); err != nil {
		r.logger.Error("mqtt subscribe failed", zap.Error(err))
	}
}

func (r *MQTTRadio) subscribe(topic string) error {
	if r.subscribed == topic {
		return nil
	}
	if r.subscribed != "" {
		if token := r.client.Unsubscribe(r.subscribed); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to unsubscribe from %s: %w", r.subscribed, token.Error())
		}
		r.subscribed = ""
	}

	token := r.client.Subscribe(topic, r.qos, func(_ mqtt.Client, m mqtt.Message) {
		r.handlePayload(m.Topic(), m.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	r.subscribed = topic
	r.logger.Info("mqtt radio subscribed", zap.String("topic", topic))
	return nil
}

func (r *MQTTRadio) handlePayload(topic string, payload []byte) {
	msg, err := r.codec.Decode(payload)
	if err != nil {
		r.logger.Warn("dropping undecodable message", zap.String("topic", topic), zap.Error(err))
		return
	}
	r.deliver(msg)
}

// SendValue publishes one value to the group's topic
func (r *MQTTRadio) SendValue(ctx context.Context, name string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.client.IsConnected() {
		return errors.New("mqtt radio not connected")
	}

	msg := r.message(name, value)
	data, err := r.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	token := r.client.Publish(Topic(msg.Group), r.qos, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timed out publishing %s", name)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish %s: %w", name, token.Error())
	}
	return nil
}

// Close disconnects from the broker
func (r *MQTTRadio) Close() error {
	r.client.Disconnect(250)
	return nil
}
