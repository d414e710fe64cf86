package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
	"imu-recorder/internal/sensor"
)

// ChannelStatus reports whether the remote command channel is up
type ChannelStatus interface {
	IsConnected() bool
}

// HealthReporter checks the sensors and the channel. It never touches the scheduler.
type HealthReporter struct {
	sensors []sensor.Handle
	channel ChannelStatus

	// Output channel (read by the MQTT publisher); nil disables publishing
	ReplyChan   chan *models.HealthReply
	sendTimeout time.Duration
}

// NewHealthReporter creates a reporter; channel may be nil when the device
// runs without MQTT
func NewHealthReporter(sensors []sensor.Handle, channel ChannelStatus, replyChan chan *models.HealthReply) *HealthReporter {
	return &HealthReporter{
		sensors:     sensors,
		channel:     channel,
		ReplyChan:   replyChan,
		sendTimeout: time.Second,
	}
}

// Check evaluates every sensor in order, then the channel, and reports the
// first failure
func (h *HealthReporter) Check() models.HealthReply {
	for _, s := range h.sensors {
		if !s.IsReachable() {
			return models.HealthReply{Status: models.HealthError, Message: fmt.Sprintf("%s not reachable", s.Name())}
		}
	}
	if h.channel != nil && !h.channel.IsConnected() {
		return models.HealthReply{Status: models.HealthError, Message: "mqtt channel not connected"}
	}
	return models.HealthReply{Status: models.HealthOK}
}

// Report runs Check and queues the reply for publishing
func (h *HealthReporter) Report(ctx context.Context) models.HealthReply {
	reply := h.Check()
	if h.ReplyChan == nil {
		return reply
	}

	select {
	case h.ReplyChan <- &reply:
	case <-time.After(h.sendTimeout):
		log.Warn("HealthReporter: reply channel full, dropping reply")
	case <-ctx.Done():
	}
	return reply
}
