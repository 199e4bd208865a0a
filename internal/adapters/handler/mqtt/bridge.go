package mqtt

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
)

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the bridge uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Bridge republishes chat inserts to an MQTT topic.
type Bridge struct {
	client publisher
	conn   mqtt.Client
	topic  string
}

type event struct {
	Type    string              `json:"type"`
	Payload *domain.ChatMessage `json:"payload"`
}

// NewBridge connects to the broker.
func NewBridge(brokerURL, clientID, topic string) (*Bridge, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	logger.Info("Connected to MQTT broker", "broker", brokerURL, "topic", topic)
	return &Bridge{client: client, conn: client, topic: topic}, nil
}

func newBridge(client publisher, topic string) *Bridge {
	return &Bridge{client: client, topic: topic}
}

// Forward publishes one chat message. It does not wait for the broker.
func (b *Bridge) Forward(msg *domain.ChatMessage) {
	data, err := json.Marshal(event{Type: "chat", Payload: msg})
	if err != nil {
		logger.Warn("MQTT: failed to encode chat message", "error", err)
		return
	}
	token := b.client.Publish(b.topic, 0, false, data)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			logger.Warn("MQTT: publish timed out", "topic", b.topic, "message_id", msg.ID)
			return
		}
		if err := token.Error(); err != nil {
			logger.Warn("MQTT: publish failed", "topic", b.topic, "message_id", msg.ID, "error", err)
		}
	}()
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Disconnect(250)
	}
}
