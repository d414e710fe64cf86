package indicator

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// State is what the device shows to the operator
type State int

const (
	Idle State = iota
	Recording
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Error:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Indicator shows the device state
type Indicator interface {
	Set(State)
}

// LogIndicator logs state changes; used when the device has no LEDs
type LogIndicator struct {
	mu    sync.Mutex
	state State
}

func (l *LogIndicator) Set(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s != l.state {
		log.Infof("Indicator: %s -> %s", l.state, s)
	}
	l.state = s
}

// State returns the last state set
func (l *LogIndicator) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// GPIOIndicator drives a recording LED and an error LED
type GPIOIndicator struct {
	LogIndicator
	recording gpio.PinOut
	failure   gpio.PinOut
}

// NewGPIO looks up the pins by name; either may be empty
func NewGPIO(recordingPin, errorPin string) (*GPIOIndicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	lookup := func(name string) (gpio.PinOut, error) {
		if name == "" {
			return nil, nil
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown gpio pin %q", name)
		}
		return p, nil
	}

	rec, err := lookup(recordingPin)
	if err != nil {
		return nil, err
	}
	fail, err := lookup(errorPin)
	if err != nil {
		return nil, err
	}
	return newGPIO(rec, fail), nil
}

func newGPIO(recording, failure gpio.PinOut) *GPIOIndicator {
	g := &GPIOIndicator{recording: recording, failure: failure}
	g.drive(Idle)
	return g
}

func (g *GPIOIndicator) Set(s State) {
	g.LogIndicator.Set(s)
	g.drive(s)
}

func (g *GPIOIndicator) drive(s State) {
	write := func(p gpio.PinOut, on bool) {
		if p == nil {
			return
		}
		level := gpio.Low
		if on {
			level = gpio.High
		}
		if err := p.Out(level); err != nil {
			log.Warnf("Indicator: failed to drive %s: %v", p, err)
		}
	}
	write(g.recording, s == Recording)
	write(g.failure, s == Error)
}

// New returns a GPIO indicator when pins are configured, a log indicator otherwise
func New(recordingPin, errorPin string) (Indicator, error) {
	if recordingPin == "" && errorPin == "" {
		return &LogIndicator{}, nil
	}
	return NewGPIO(recordingPin, errorPin)
}
