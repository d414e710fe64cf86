package sensor

import (
	"fmt"
	"math"
	"sync"

	"imu-recorder/internal/models"
)

// Simulated produces a deterministic waveform for bench runs without hardware
type Simulated struct {
	name  string
	phase int64

	mu        sync.Mutex
	tick      int64
	reachable bool
}

// NewSimulated creates a reachable simulated sensor; phase shifts its waveform
func NewSimulated(name string, phase int64) *Simulated {
	return &Simulated{name: name, phase: phase, reachable: true}
}

func (s *Simulated) Name() string {
	return s.name
}

// SetReachable makes the sensor answer or fail
func (s *Simulated) SetReachable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable = ok
}

func (s *Simulated) IsReachable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reachable
}

// Reads returns how many samples were produced
func (s *Simulated) Reads() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

func (s *Simulated) Read() (models.SampleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reachable {
		return models.SampleRecord{}, fmt.Errorf("%w: %s", ErrSensorUnreachable, s.name)
	}

	t := float64(s.tick+s.phase) / 10
	s.tick++

	// ~1 g on Z with small oscillations, 16384 LSB/g and 131 LSB/(deg/s)
	return models.SampleRecord{
		Ax: int16(800 * math.Sin(t)),
		Ay: int16(800 * math.Cos(t)),
		Az: int16(16384 + 200*math.Sin(t/2)),
		Gx: int16(131 * 5 * math.Cos(t)),
		Gy: int16(131 * 5 * math.Sin(t)),
		Gz: int16(131 * math.Sin(t/3)),
	}, nil
}
