package aggregator

import (
	"errors"
	"fmt"
	"sync"

	"imu-recorder/internal/models"
)

// ErrBufferFull is returned when a series already holds the maximum number of samples
var ErrBufferFull = errors.New("sample buffer full")

// seriesState holds the samples and key counter of one sensor
type seriesState struct {
	*models.SensorSeries
	counter int
}

// SampleBuffer accumulates the measurement document of the current window
type SampleBuffer struct {
	schema     models.Schema
	maxSamples int

	mu       sync.RWMutex
	metadata models.Metadata
	series   []*seriesState
}

// NewSampleBuffer creates an empty buffer bounded to maxSamples per series
func NewSampleBuffer(schema models.Schema, maxSamples int) *SampleBuffer {
	return &SampleBuffer{
		schema:     schema,
		maxSamples: maxSamples,
	}
}

// Capacity returns the maximum number of samples a series may hold
func (b *SampleBuffer) Capacity() int {
	return b.maxSamples
}

// Reset drops all samples, metadata and key counters and creates an empty
// series for every sensor, in the given order.
func (b *SampleBuffer) Reset(sensors []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metadata = models.Metadata{}
	b.series = make([]*seriesState, 0, len(sensors))
	for _, name := range sensors {
		b.series = append(b.series, newSeriesState(name))
	}
}

func newSeriesState(sensor string) *seriesState {
	return &seriesState{SensorSeries: models.NewSensorSeries(sensor)}
}

// SetMetadata overwrites the metadata block; the last write wins
func (b *SampleBuffer) SetMetadata(m models.Metadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metadata = m
}

// getOrCreateSeries must be called with mu held
func (b *SampleBuffer) getOrCreateSeries(sensor string) *seriesState {
	for _, s := range b.series {
		if s.Sensor == sensor {
			return s
		}
	}

	s := newSeriesState(sensor)
	b.series = append(b.series, s)
	return s
}

// NextKey returns the next unused sample key of the sensor's series
func (b *SampleBuffer) NextKey(sensor string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.getOrCreateSeries(sensor)
	key := b.schema.SampleKey(s.counter)
	s.counter++
	return key
}

// Append stores record under key in the sensor's series. An existing key is
// overwritten in place and keeps its position.
func (b *SampleBuffer) Append(sensor, key string, record models.SampleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.getOrCreateSeries(sensor)
	if _, exists := s.Get(key); !exists && s.Len() >= b.maxSamples {
		return fmt.Errorf("%w: %s holds %d samples", ErrBufferFull, sensor, s.Len())
	}

	s.Set(key, record)
	return nil
}

// Len returns the number of samples held for sensor
func (b *SampleBuffer) Len(sensor string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.series {
		if s.Sensor == sensor {
			return s.Len()
		}
	}
	return 0
}

// Snapshot returns a copy of the document that later appends do not affect
func (b *SampleBuffer) Snapshot() *models.Document {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc := &models.Document{
		Metadata: b.metadata,
		Series:   make([]*models.SensorSeries, 0, len(b.series)),
	}
	for _, s := range b.series {
		doc.Series = append(doc.Series, s.Clone())
	}
	return doc
}
