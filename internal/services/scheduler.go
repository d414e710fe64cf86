package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/aggregator"
	"imu-recorder/internal/clock"
	"imu-recorder/internal/indicator"
	"imu-recorder/internal/models"
	"imu-recorder/internal/sensor"
)

// WindowState is the lifecycle state of the sampling scheduler
type WindowState int

const (
	StateIdle WindowState = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s WindowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// WindowRequest describes one measurement window
type WindowRequest struct {
	DurationMs       int64
	SamplesPerSecond int64
	SubjectID        string
	TestType         string
}

// TotalSamples is the number of ticks of the window; non-positive inputs give
// zero and a product that does not fit in an int64 saturates at MaxInt64.
func (r WindowRequest) TotalSamples() int64 {
	if r.DurationMs <= 0 || r.SamplesPerSecond <= 0 {
		return 0
	}
	if r.DurationMs > math.MaxInt64/r.SamplesPerSecond {
		return math.MaxInt64
	}
	return r.DurationMs * r.SamplesPerSecond / 1000
}

// TickInterval is the whole-millisecond period between ticks
func (r WindowRequest) TickInterval() time.Duration {
	if r.SamplesPerSecond <= 0 {
		return 0
	}
	return time.Duration(1000/r.SamplesPerSecond) * time.Millisecond
}

// WindowResult is the outcome of a finished window
type WindowResult struct {
	ID      string
	State   WindowState // StateCompleted or StateCancelled
	Ticks   int64
	Slot    string
	Started time.Time
	Ended   time.Time

	PersistErr     error
	DeliveryStatus int
	DeliveryErr    error
}

// DocumentSaver persists a finished document
type DocumentSaver interface {
	Save(slot string, doc *models.Document) error
}

// DocumentDeliverer forwards a persisted slot to the collector
type DocumentDeliverer interface {
	Deliver(ctx context.Context, slot string) (int, error)
}

// SchedulerConfig holds the scheduler settings that do not change per window
type SchedulerConfig struct {
	SlotPattern string // may contain {window_id}
	Location    string
	TimeZone    *time.Location
	Timestamps  bool
}

// Scheduler runs measurement windows: it samples every sensor at a fixed
// rate into the buffer, then persists and delivers the document.
type Scheduler struct {
	sensors   []sensor.Handle
	buffer    *aggregator.SampleBuffer
	saver     DocumentSaver
	deliverer DocumentDeliverer
	clock     clock.Clock
	epoch     clock.EpochSource
	indicator indicator.Indicator
	config    SchedulerConfig

	cancel atomic.Bool

	mu       sync.Mutex
	state    WindowState
	sampling bool // false once the tick loop of the current window has exited
	current  string
	done     chan struct{}
	last     WindowResult
}

// NewScheduler wires a scheduler; sensors are sampled in the given order
func NewScheduler(
	sensors []sensor.Handle,
	buffer *aggregator.SampleBuffer,
	saver DocumentSaver,
	deliverer DocumentDeliverer,
	clk clock.Clock,
	epoch clock.EpochSource,
	ind indicator.Indicator,
	config SchedulerConfig,
) *Scheduler {
	if config.TimeZone == nil {
		config.TimeZone = time.UTC
	}
	if config.SlotPattern == "" {
		config.SlotPattern = "measurement.json"
	}
	return &Scheduler{
		sensors:   sensors,
		buffer:    buffer,
		saver:     saver,
		deliverer: deliverer,
		clock:     clk,
		epoch:     epoch,
		indicator: ind,
		config:    config,
	}
}

// State returns the current state
func (s *Scheduler) State() WindowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a window on its own goroutine and returns its id. The
// buffer and sample counters are cleared first.
func (s *Scheduler) Start(ctx context.Context, req WindowRequest) (string, error) {
	if s.State() == StateRunning {
		return "", s.rejectRunning()
	}

	total := req.TotalSamples()
	if total > int64(s.buffer.Capacity()) {
		return "", fmt.Errorf("%w: %d samples per sensor, capacity %d",
			ErrWindowTooLarge, total, s.buffer.Capacity())
	}

	// the NTP query may block for its whole timeout, keep it off the lock
	if err := s.epoch.Refresh(); err != nil {
		log.Warnf("Scheduler: clock not refreshed, using last known time: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return "", s.rejectRunningLocked()
	}
	now := s.epoch.Now().In(s.config.TimeZone)

	names := make([]string, 0, len(s.sensors))
	for _, h := range s.sensors {
		names = append(names, h.Name())
	}
	s.buffer.Reset(names)
	s.buffer.SetMetadata(models.Metadata{
		SubjectID: req.SubjectID,
		TestType:  req.TestType,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Location:  s.config.Location,
	})

	id := uuid.NewString()
	s.cancel.Store(false)
	s.state = StateRunning
	s.sampling = true
	s.current = id
	s.done = make(chan struct{})
	s.indicator.Set(indicator.Recording)

	log.WithFields(log.Fields{
		"window":   id,
		"subject":  req.SubjectID,
		"test":     req.TestType,
		"samples":  total,
		"interval": req.TickInterval(),
	}).Info("Scheduler: window started")

	go s.run(ctx, id, req, total, s.done)
	return id, nil
}

func (s *Scheduler) rejectRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectRunningLocked()
}

func (s *Scheduler) rejectRunningLocked() error {
	log.Warnf("Scheduler: start ignored, window %s is running", s.current)
	return ErrAlreadyRunning
}

// Cancel asks the running window to stop at its next tick boundary. It
// returns false when no window is sampling, including while a finished
// window is being persisted and delivered.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		log.Debug("Scheduler: cancel ignored, idle")
		return false
	}
	if !s.sampling {
		log.Infof("Scheduler: cancel ignored, window %s already sampled", s.current)
		return false
	}
	s.cancel.Store(true)
	log.Infof("Scheduler: cancelling window %s", s.current)
	return true
}

// Wait blocks until the current window, if any, has finished and returns
// the result of the last finished window.
func (s *Scheduler) Wait() WindowResult {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) run(ctx context.Context, id string, req WindowRequest, total int64, done chan struct{}) {
	defer close(done)

	interval := req.TickInterval()
	start := s.clock.Now()
	result := WindowResult{ID: id, State: StateCompleted, Started: start}

	for {
		if s.cancel.Load() || ctx.Err() != nil {
			result.State = StateCancelled
			break
		}
		if result.Ticks >= total {
			break
		}

		tickStart := s.clock.Now()
		s.sampleAll(tickStart.Sub(start))
		result.Ticks++

		// no catch-up after an overrun
		if remaining := interval - s.clock.Now().Sub(tickStart); remaining > 0 {
			s.clock.Sleep(remaining)
		}
	}

	result.Ended = s.clock.Now()

	s.mu.Lock()
	s.sampling = false
	s.mu.Unlock()

	log.Infof("Scheduler: window %s %s after %d of %d samples in %v",
		id, result.State, result.Ticks, total, result.Ended.Sub(start))

	final := indicator.Idle
	if result.State == StateCompleted {
		if !s.finish(ctx, &result) {
			final = indicator.Error
		}
	}

	// set before Idle is visible; the next Start's Recording must not be overwritten
	s.mu.Lock()
	s.indicator.Set(final)
	s.state = StateIdle
	s.current = ""
	s.last = result
	s.mu.Unlock()
}

// sampleAll reads every sensor once. A failed read is stored as a zero
// record so all series keep the same length.
func (s *Scheduler) sampleAll(offset time.Duration) {
	for _, h := range s.sensors {
		record, err := h.Read()
		if err != nil {
			log.Warnf("Scheduler: %s read failed, storing zero sample: %v", h.Name(), err)
			record = models.SampleRecord{}
		}
		if s.config.Timestamps {
			record = record.WithTimestamp(offset.Milliseconds())
		}

		key := s.buffer.NextKey(h.Name())
		if err := s.buffer.Append(h.Name(), key, record); err != nil {
			log.Errorf("Scheduler: failed to store %s/%s: %v", h.Name(), key, err)
		}
	}
}

// finish persists the document and then delivers it; delivery is skipped
// when persistence fails. It reports whether the document was persisted.
func (s *Scheduler) finish(ctx context.Context, result *WindowResult) bool {
	result.Slot = strings.ReplaceAll(s.config.SlotPattern, "{window_id}", result.ID)

	if err := s.saver.Save(result.Slot, s.buffer.Snapshot()); err != nil {
		result.PersistErr = err
		log.Errorf("Scheduler: failed to persist window %s: %v", result.ID, err)
		return false
	}

	status, err := s.deliverer.Deliver(ctx, result.Slot)
	result.DeliveryStatus = status
	if err != nil {
		result.DeliveryErr = err
		log.Errorf("Scheduler: failed to deliver window %s: %v", result.ID, err)
	}
	return true
}
