// Package publisher pushes bill summaries to an MQTT broker so dashboards
// such as Home Assistant can show the running bill.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/config"
	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/storage"
)

const defaultTopicPrefix = "wattscope"

// Publisher implements billing.Notifier over MQTT.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	log         *zap.Logger
}

// New connects to the broker in cfg.
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultTopicPrefix
	}

	opts := mqtt.NewClientOptions()
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: prefix,
		log:         logging.Named("publisher"),
	}, nil
}

// Topic is the retained topic carrying a user's running bill.
func Topic(prefix, userID string) string {
	return fmt.Sprintf("%s/%s/bill", strings.TrimSuffix(prefix, "/"), userID)
}

// BillPayload is the JSON document published per user.
type BillPayload struct {
	UserID      string  `json:"user_id"`
	Category    string  `json:"category"`
	Events      int     `json:"events"`
	TotalUnits  float64 `json:"total_units"`
	SlabLabel   string  `json:"slab_label"`
	RatePerUnit float64 `json:"rate_per_unit"`
	EnergyCost  float64 `json:"energy_cost"`
	FixedCharge float64 `json:"fixed_charge"`
	TotalCost   float64 `json:"total_cost"`
	UpdatedAt   string  `json:"updated_at"`
}

// Payload encodes a summary for publishing.
func Payload(sum billing.Summary) ([]byte, error) {
	return json.Marshal(BillPayload{
		UserID:      sum.UserID,
		Category:    string(sum.Category),
		Events:      sum.Events,
		TotalUnits:  sum.TotalUnits,
		SlabLabel:   sum.SlabLabel,
		RatePerUnit: sum.RatePerUnit,
		EnergyCost:  sum.EnergyCost,
		FixedCharge: sum.FixedCharge,
		TotalCost:   sum.TotalCost,
		UpdatedAt:   sum.GeneratedAt.Format(time.RFC3339),
	})
}

// BillChanged publishes the user's new summary as a retained message.
func (p *Publisher) BillChanged(ctx context.Context, user storage.User, sum billing.Summary) error {
	body, err := Payload(sum)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := Topic(p.topicPrefix, user.ID)
	token := p.client.Publish(topic, 1, true, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	p.log.Debug("bill published", zap.String("topic", topic), zap.Float64("total_cost", sum.TotalCost))
	return nil
}

// Close disconnects from the MQTT broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
