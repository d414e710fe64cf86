package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"imu-recorder/internal/indicator"
	"imu-recorder/internal/models"
)

var windowStart = time.Date(2024, 5, 1, 8, 30, 15, 0, time.UTC)

// fakeEpoch is an EpochSource with a fixed time
type fakeEpoch struct {
	mu         sync.Mutex
	now        time.Time
	refreshErr error
	refreshes  int
	onRefresh  func()
}

func (f *fakeEpoch) Refresh() error {
	if f.onRefresh != nil {
		f.onRefresh()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeEpoch) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// hookSensor counts reads and calls onRead before returning each sample
type hookSensor struct {
	name   string
	onRead func(n int)

	mu        sync.Mutex
	reads     int
	reachable bool
}

func newHookSensor(name string, onRead func(n int)) *hookSensor {
	return &hookSensor{name: name, onRead: onRead, reachable: true}
}

func (h *hookSensor) Name() string { return h.name }

func (h *hookSensor) IsReachable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reachable
}

func (h *hookSensor) Read() (models.SampleRecord, error) {
	h.mu.Lock()
	h.reads++
	n := h.reads
	h.mu.Unlock()

	if h.onRead != nil {
		h.onRead(n)
	}
	return models.SampleRecord{Ax: int16(n), Gz: -int16(n)}, nil
}

func (h *hookSensor) Reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}

type saverMock struct {
	mock.Mock
}

func (m *saverMock) Save(slot string, doc *models.Document) error {
	return m.Called(slot, doc).Error(0)
}

type delivererMock struct {
	mock.Mock
}

func (m *delivererMock) Deliver(ctx context.Context, slot string) (int, error) {
	args := m.Called(ctx, slot)
	return args.Int(0), args.Error(1)
}

type windowsMock struct {
	mock.Mock
}

func (m *windowsMock) Start(ctx context.Context, req WindowRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *windowsMock) Cancel() bool {
	return m.Called().Bool(0)
}

type healthMock struct {
	mock.Mock
}

func (m *healthMock) Report(ctx context.Context) models.HealthReply {
	return m.Called(ctx).Get(0).(models.HealthReply)
}

type channelStub bool

func (c channelStub) IsConnected() bool { return bool(c) }

// gatedIndicator holds the first Set(Idle) until release is closed
type gatedIndicator struct {
	indicator.LogIndicator

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedIndicator() *gatedIndicator {
	return &gatedIndicator{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedIndicator) Set(s indicator.State) {
	if s == indicator.Idle {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	g.LogIndicator.Set(s)
}
