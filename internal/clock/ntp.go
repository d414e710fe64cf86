package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"
	log "github.com/sirupsen/logrus"
)

// EpochSource provides wall-clock time for measurement metadata
type EpochSource interface {
	// Refresh resynchronizes the source; on failure the previous offset is kept
	Refresh() error
	Now() time.Time
}

// NTPSource corrects a local clock with the offset reported by an NTP server
type NTPSource struct {
	server  string
	timeout time.Duration
	local   Clock
	query   func(server string, timeout time.Duration) (time.Duration, error)

	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

// NewNTPSource creates a source querying server. An empty server disables
// synchronization and the local clock is used as is.
func NewNTPSource(server string, timeout time.Duration, local Clock) *NTPSource {
	return &NTPSource{
		server:  server,
		timeout: timeout,
		local:   local,
		query:   queryOffset,
	}
}

func queryOffset(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Refresh queries the server and stores the clock offset
func (s *NTPSource) Refresh() error {
	if s.server == "" {
		return nil
	}

	offset, err := s.query(s.server, s.timeout)
	if err != nil {
		log.Warnf("Clock: NTP query to %s failed, keeping offset %v: %v", s.server, s.Offset(), err)
		return fmt.Errorf("failed to query NTP server %s: %w", s.server, err)
	}

	s.mu.Lock()
	s.offset = offset
	s.synced = true
	s.mu.Unlock()

	log.Debugf("Clock: synchronized with %s, offset %v", s.server, offset)
	return nil
}

// Offset returns the last known correction
func (s *NTPSource) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Synced reports whether at least one query succeeded
func (s *NTPSource) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

func (s *NTPSource) Now() time.Time {
	return s.local.Now().Add(s.Offset())
}

// NowEpochSeconds returns the corrected time as Unix seconds
func (s *NTPSource) NowEpochSeconds() int64 {
	return s.Now().Unix()
}
