package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	// MQTT Configuration
	MQTTBroker           string
	MQTTClientID         string
	MQTTUsername         string
	MQTTPassword         string
	MQTTConnectAttempts  int
	MQTTConnectTimeout   time.Duration
	MQTTMinRetryInterval time.Duration
	MQTTMaxRetryInterval time.Duration

	// Command and health topics
	MQTTTopicCommand     string
	MQTTTopicHealth      string
	MQTTTopicHealthReply string

	// Delivery
	CollectorURL    string
	DeliveryTimeout time.Duration

	// Sampling defaults for a bare "init"
	DefaultDurationMs    int64
	DefaultSamplesPerSec int64
	DefaultSubjectID     string
	DefaultTestType      string
	SampleTimestamps     bool
	MaxSamplesPerSeries  int

	// Document layout
	DocumentSchema string // "en" or "es"
	DeviceLocation string
	TimeZone       string

	// Storage
	StorageDir  string
	StorageSlot string // may contain {window_id}

	// Sensors
	SensorDriver    string // "mpu6050" or "sim"
	I2CBus          string
	SensorNames     []string
	SensorAddresses []uint16

	// Clock
	NTPServer  string
	NTPTimeout time.Duration

	// Indicator
	LEDRecordingPin string
	LEDErrorPin     string

	// Local text channel
	ConsoleEnabled bool
	Debug          bool
}

// Load reads the device configuration from the environment. Files are
// loaded with godotenv first; missing files are ignored.
func Load(files ...string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(files...)

	cfg := &Config{
		// MQTT Configuration
		MQTTBroker:           getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:         getEnv("MQTT_CLIENT_ID", "imu-recorder"),
		MQTTUsername:         getEnv("MQTT_USERNAME", ""),
		MQTTPassword:         getEnv("MQTT_PASSWORD", ""),
		MQTTConnectAttempts:  getEnvInt("MQTT_CONNECT_ATTEMPTS", 0),
		MQTTConnectTimeout:   getEnvDuration("MQTT_CONNECT_TIMEOUT", 10*time.Second),
		MQTTMinRetryInterval: getEnvDuration("MQTT_MIN_RETRY_INTERVAL", 500*time.Millisecond),
		MQTTMaxRetryInterval: getEnvDuration("MQTT_MAX_RETRY_INTERVAL", 30*time.Second),

		MQTTTopicCommand:     getEnv("MQTT_TOPIC_COMMAND", "imu/{client_id}/command"),
		MQTTTopicHealth:      getEnv("MQTT_TOPIC_HEALTH", "imu/{client_id}/health"),
		MQTTTopicHealthReply: getEnv("MQTT_TOPIC_HEALTH_REPLY", "imu/{client_id}/health/reply"),

		CollectorURL:    getEnv("COLLECTOR_URL", "http://localhost:8080/measurements"),
		DeliveryTimeout: getEnvDuration("DELIVERY_TIMEOUT", 15*time.Second),

		DefaultDurationMs:    int64(getEnvInt("SAMPLING_DURATION_MS", 5000)),
		DefaultSamplesPerSec: int64(getEnvInt("SAMPLES_PER_SECOND", 20)),
		DefaultSubjectID:     getEnv("DEFAULT_SUBJECT_ID", "unassigned"),
		DefaultTestType:      getEnv("DEFAULT_TEST_TYPE", "default"),
		SampleTimestamps:     getEnvBool("SAMPLE_TIMESTAMPS", true),
		MaxSamplesPerSeries:  getEnvInt("MAX_SAMPLES_PER_SERIES", 12000),

		DocumentSchema: getEnv("DOCUMENT_SCHEMA", "en"),
		DeviceLocation: getEnv("DEVICE_LOCATION", ""),
		TimeZone:       getEnv("TIMEZONE", "UTC"),

		StorageDir:  getEnv("STORAGE_DIR", "./data"),
		StorageSlot: getEnv("STORAGE_SLOT", "measurement.json"),

		SensorDriver:    getEnv("SENSOR_DRIVER", "mpu6050"),
		I2CBus:          getEnv("I2C_BUS", ""),
		SensorNames:     getEnvList("SENSOR_NAMES", []string{"sensor1", "sensor2"}),
		SensorAddresses: getEnvAddresses("SENSOR_ADDRESSES", []uint16{0x68, 0x69}),

		NTPServer:  getEnv("NTP_SERVER", "pool.ntp.org"),
		NTPTimeout: getEnvDuration("NTP_TIMEOUT", 5*time.Second),

		LEDRecordingPin: getEnv("LED_RECORDING_PIN", ""),
		LEDErrorPin:     getEnv("LED_ERROR_PIN", ""),

		ConsoleEnabled: getEnvBool("CONSOLE_ENABLED", true),
		Debug:          getEnvBool("DEBUG", false),
	}

	cfg.MQTTTopicCommand = formatClientID(cfg.MQTTTopicCommand, cfg.MQTTClientID)
	cfg.MQTTTopicHealth = formatClientID(cfg.MQTTTopicHealth, cfg.MQTTClientID)
	cfg.MQTTTopicHealthReply = formatClientID(cfg.MQTTTopicHealthReply, cfg.MQTTClientID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that have no sensible fallback.
func (c *Config) Validate() error {
	if len(c.SensorNames) == 0 {
		return fmt.Errorf("SENSOR_NAMES must name at least one sensor")
	}
	if c.SensorDriver == "mpu6050" && len(c.SensorAddresses) != len(c.SensorNames) {
		return fmt.Errorf("SENSOR_ADDRESSES has %d entries, SENSOR_NAMES has %d",
			len(c.SensorAddresses), len(c.SensorNames))
	}
	switch c.SensorDriver {
	case "mpu6050", "sim":
	default:
		return fmt.Errorf("unknown SENSOR_DRIVER %q", c.SensorDriver)
	}
	switch c.DocumentSchema {
	case "en", "es":
	default:
		return fmt.Errorf("unknown DOCUMENT_SCHEMA %q", c.DocumentSchema)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}
	if c.MaxSamplesPerSeries <= 0 {
		return fmt.Errorf("MAX_SAMPLES_PER_SERIES must be positive")
	}
	return nil
}

// formatClientID replaces the {client_id} placeholder with the MQTT client ID
func formatClientID(pattern, clientID string) string {
	return strings.ReplaceAll(pattern, "{client_id}", clientID)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("Config: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Warnf("Config: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warnf("Config: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAddresses parses a comma separated list of I2C addresses such as "0x68,0x69"
func getEnvAddresses(key string, defaultValue []uint16) []uint16 {
	parts := getEnvList(key, nil)
	if parts == nil {
		return defaultValue
	}

	out := make([]uint16, 0, len(parts))
	for _, part := range parts {
		addr, err := strconv.ParseUint(part, 0, 16)
		if err != nil {
			log.Warnf("Config: failed to parse %s entry %q as address, using default: %v", key, part, err)
			return defaultValue
		}
		out = append(out, uint16(addr))
	}
	return out
}
