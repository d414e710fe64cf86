package sensor

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"imu-recorder/internal/models"
	"imu-recorder/pkg/config"
)

// ErrSensorUnreachable is returned when a sensor does not answer on its bus
var ErrSensorUnreachable = errors.New("sensor unreachable")

// Handle is one inertial sensor
type Handle interface {
	Name() string
	Read() (models.SampleRecord, error)
	IsReachable() bool
}

// Set is the sensors of the device in configured order
type Set struct {
	Handles []Handle
	bus     i2c.BusCloser
}

// Names returns the sensor names in configured order
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Handles))
	for _, h := range s.Handles {
		names = append(names, h.Name())
	}
	return names
}

// Close releases the I2C bus, if one was opened
func (s *Set) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}

// Open builds the sensors named in cfg with the configured driver
func Open(cfg *config.Config) (*Set, error) {
	switch cfg.SensorDriver {
	case "sim":
		set := &Set{}
		for i, name := range cfg.SensorNames {
			set.Handles = append(set.Handles, NewSimulated(name, int64(i)))
		}
		log.Infof("Sensor: using %d simulated sensors", len(set.Handles))
		return set, nil

	case "mpu6050":
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}
		bus, err := i2creg.Open(cfg.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("failed to open i2c bus %q: %w", cfg.I2CBus, err)
		}

		set, err := openMPU6050(bus, cfg.SensorNames, cfg.SensorAddresses)
		if err != nil {
			bus.Close()
			return nil, err
		}
		set.bus = bus
		return set, nil
	}
	return nil, fmt.Errorf("unknown sensor driver %q", cfg.SensorDriver)
}

func openMPU6050(bus i2c.Bus, names []string, addrs []uint16) (*Set, error) {
	if len(names) != len(addrs) {
		return nil, fmt.Errorf("%d sensor names for %d addresses", len(names), len(addrs))
	}

	set := &Set{}
	for i, name := range names {
		dev := NewMPU6050(name, bus, addrs[i])
		if err := dev.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
		}
		if !dev.IsReachable() {
			return nil, fmt.Errorf("%w: %s at 0x%02X is not an MPU6050", ErrSensorUnreachable, name, addrs[i])
		}
		log.Infof("Sensor: %s ready at 0x%02X", name, addrs[i])
		set.Handles = append(set.Handles, dev)
	}
	return set, nil
}
