package mqtt

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

// Subscriber turns messages on the command and health topics into commands
type Subscriber struct {
	client *Client

	// Output channel (written by subscriber, read by the command router)
	CommandChan chan *models.Command

	commandTopic string
	healthTopic  string
	sendTimeout  time.Duration
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	CommandTopic string // e.g., "imu/{client_id}/command"
	HealthTopic  string // e.g., "imu/{client_id}/health"
	SendTimeout  time.Duration
}

// NewSubscriber creates a subscriber that resubscribes on every connection
func NewSubscriber(client *Client, config SubscriberConfig, commandChan chan *models.Command) *Subscriber {
	if config.SendTimeout <= 0 {
		config.SendTimeout = time.Second
	}

	s := &Subscriber{
		client:       client,
		CommandChan:  commandChan,
		commandTopic: config.CommandTopic,
		healthTopic:  config.HealthTopic,
		sendTimeout:  config.SendTimeout,
	}
	client.OnConnect(func() {
		if err := s.SubscribeAll(); err != nil {
			log.Errorf("MQTT Subscriber: %v", err)
		}
	})
	return s
}

// SubscribeAll subscribes to all configured topics
func (s *Subscriber) SubscribeAll() error {
	for _, topic := range []string{s.commandTopic, s.healthTopic} {
		if topic == "" {
			continue
		}
		if err := s.client.Subscribe(topic, s.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		log.Infof("MQTT Subscriber: Subscribed to %s", topic)
	}
	return nil
}

// handleMessage forwards the payload as a remote command
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	cmd := &models.Command{
		Text:       strings.TrimSpace(string(msg.Payload())),
		Source:     models.SourceRemote,
		Topic:      msg.Topic(),
		ReceivedAt: time.Now(),
	}

	log.Debugf("MQTT Subscriber: %q on %s", cmd.Text, cmd.Topic)

	// Write to channel (non-blocking with timeout)
	select {
	case s.CommandChan <- cmd:
	case <-time.After(s.sendTimeout):
		log.Warnf("MQTT Subscriber: command channel full, dropping %q from %s", cmd.Text, cmd.Topic)
	}
}
