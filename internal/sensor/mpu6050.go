package sensor

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"

	"imu-recorder/internal/models"
)

// MPU6050 registers
const (
	regAccelXoutH = 0x3B
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75

	// accel (6) + temperature (2) + gyro (6)
	burstLen = 14

	whoAmIValue = 0x34
)

// MPU6050 reads raw accelerometer and gyroscope words over I2C
type MPU6050 struct {
	name string
	dev  *i2c.Dev
}

// NewMPU6050 addresses a chip on bus; call Init before reading
func NewMPU6050(name string, bus i2c.Bus, addr uint16) *MPU6050 {
	return &MPU6050{
		name: name,
		dev:  &i2c.Dev{Bus: bus, Addr: addr},
	}
}

func (m *MPU6050) Name() string {
	return m.name
}

// Init clears the sleep bit so the chip starts converting
func (m *MPU6050) Init() error {
	if err := m.dev.Tx([]byte{regPwrMgmt1, 0}, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSensorUnreachable, m.name, err)
	}
	return nil
}

// Read burst reads one accel+gyro sample. Values are the raw register
// words at the chip's configured full scale.
func (m *MPU6050) Read() (models.SampleRecord, error) {
	buf := make([]byte, burstLen)
	if err := m.dev.Tx([]byte{regAccelXoutH}, buf); err != nil {
		return models.SampleRecord{}, fmt.Errorf("%w: %s: %v", ErrSensorUnreachable, m.name, err)
	}

	word := func(i int) int16 {
		return int16(binary.BigEndian.Uint16(buf[i:]))
	}
	return models.SampleRecord{
		Ax: word(0),
		Ay: word(2),
		Az: word(4),
		Gx: word(8),
		Gy: word(10),
		Gz: word(12),
	}, nil
}

// IsReachable checks the WHO_AM_I identity bits
func (m *MPU6050) IsReachable() bool {
	id := make([]byte, 1)
	if err := m.dev.Tx([]byte{regWhoAmI}, id); err != nil {
		return false
	}
	return (id[0]>>1)&0x3F == whoAmIValue
}
