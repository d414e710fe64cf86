package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

// Publisher publishes health replies from a channel
type Publisher struct {
	client *Client

	// Input channel (read by publisher, written by the health reporter)
	HealthChan chan *models.HealthReply

	replyTopic string
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	HealthReplyTopic string // e.g., "imu/{client_id}/health/reply"
}

// NewPublisher creates a new MQTT publisher with channels
func NewPublisher(client *Client, config PublisherConfig, healthChan chan *models.HealthReply) *Publisher {
	return &Publisher{
		client:     client,
		HealthChan: healthChan,
		replyTopic: config.HealthReplyTopic,
	}
}

// Start publishes health replies until ctx is cancelled or the channel is closed
func (p *Publisher) Start(ctx context.Context) {
	log.Info("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Info("MQTT Publisher: Context cancelled, shutting down...")
			return

		case reply, ok := <-p.HealthChan:
			if !ok {
				log.Info("MQTT Publisher: Health channel closed, shutting down...")
				return
			}

			if err := p.publishHealth(reply); err != nil {
				log.Errorf("MQTT Publisher: %v", err)
			}
		}
	}
}

func (p *Publisher) publishHealth(reply *models.HealthReply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal health reply: %w", err)
	}

	if err := p.client.Publish(p.replyTopic, payload); err != nil {
		return fmt.Errorf("failed to publish health reply: %w", err)
	}

	log.Infof("MQTT Publisher: health %s published to %s", reply.Status, p.replyTopic)
	return nil
}
