package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"imu-recorder/internal/aggregator"
	"imu-recorder/internal/clock"
	"imu-recorder/internal/console"
	"imu-recorder/internal/delivery"
	"imu-recorder/internal/indicator"
	"imu-recorder/internal/models"
	"imu-recorder/internal/mqtt"
	"imu-recorder/internal/retry"
	"imu-recorder/internal/sensor"
	"imu-recorder/internal/services"
	"imu-recorder/internal/storage"
	"imu-recorder/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "imu-recorder",
	Short: "samples two inertial sensors into measurement documents",
	Long: `imu-recorder samples two 6-axis inertial sensors during measurement windows,
persists each window as a JSON document and posts it to a collector.
Windows are started and stopped from the console or over MQTT.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "run the recorder until interrupted",
	Example: `  imu-recorder run --env device.env`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "check the sensors and the broker once and print the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return checkHealth(cmd.Context(), cfg)
	},
}

var showCmd = &cobra.Command{
	Use:   "show [slot]",
	Short: "print a persisted measurement document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		slot := cfg.StorageSlot
		if len(args) == 1 {
			slot = args[0]
		}
		return show(cfg, slot)
	},
}

func main() {
	rootCmd.PersistentFlags().StringSlice("env", nil, "dotenv files to load before reading the environment")
	rootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")

	rootCmd.AddCommand(runCmd, healthCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(cmd *cobra.Command) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLevel(log.DebugLevel)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env")
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return cfg, nil
}

func newMQTTClient(cfg *config.Config) *mqtt.Client {
	return mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		Timeout:  cfg.MQTTConnectTimeout,
		Backoff: retry.ExponentialBackoff{
			MaxAttempts: cfg.MQTTConnectAttempts,
			MinInterval: cfg.MQTTMinRetryInterval,
			MaxInterval: cfg.MQTTMaxRetryInterval,
		},
	})
}

func run(cfg *config.Config) error {
	log.Info("Starting IMU recorder...")

	schema, err := models.SchemaByName(cfg.DocumentSchema)
	if err != nil {
		return err
	}
	tz, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid time zone: %w", err)
	}

	// === Hardware ===
	sensors, err := sensor.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize sensors: %v", err)
	}
	defer sensors.Close()

	ind, err := indicator.New(cfg.LEDRecordingPin, cfg.LEDErrorPin)
	if err != nil {
		log.Warnf("Indicator: %v, falling back to log output", err)
		ind = &indicator.LogIndicator{}
	}

	// === Storage and delivery ===
	store, err := storage.NewOSStore(cfg.StorageDir)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	persister := storage.NewPersister(store, schema)
	deliverer := delivery.NewDeliverer(store, cfg.CollectorURL, cfg.DeliveryTimeout)

	// === Sampling ===
	epoch := clock.NewNTPSource(cfg.NTPServer, cfg.NTPTimeout, clock.Real())
	buffer := aggregator.NewSampleBuffer(schema, cfg.MaxSamplesPerSeries)
	scheduler := services.NewScheduler(sensors.Handles, buffer, persister, deliverer, clock.Real(), epoch, ind,
		services.SchedulerConfig{
			SlotPattern: cfg.StorageSlot,
			Location:    cfg.DeviceLocation,
			TimeZone:    tz,
			Timestamps:  cfg.SampleTimestamps,
		})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Channel Creation ===
	commandChan := make(chan *models.Command, 16)    // console + MQTT -> router
	healthChan := make(chan *models.HealthReply, 4) // health reporter -> MQTT

	// === MQTT ===
	mqttClient := newMQTTClient(cfg)
	mqtt.NewSubscriber(mqttClient, mqtt.SubscriberConfig{
		CommandTopic: cfg.MQTTTopicCommand,
		HealthTopic:  cfg.MQTTTopicHealth,
	}, commandChan)
	publisher := mqtt.NewPublisher(mqttClient, mqtt.PublisherConfig{
		HealthReplyTopic: cfg.MQTTTopicHealthReply,
	}, healthChan)

	// connecting must not hold up local commands
	go func() {
		if err := mqttClient.Connect(ctx); err != nil {
			log.Errorf("MQTT: %v", err)
		}
	}()
	defer mqttClient.Close()

	go publisher.Start(ctx)

	// === Commands ===
	health := services.NewHealthReporter(sensors.Handles, mqttClient, healthChan)
	router := services.NewRouter(scheduler, health, services.RouterConfig{
		HealthTopic: cfg.MQTTTopicHealth,
		Defaults: services.WindowRequest{
			DurationMs:       cfg.DefaultDurationMs,
			SamplesPerSecond: cfg.DefaultSamplesPerSec,
			SubjectID:        cfg.DefaultSubjectID,
			TestType:         cfg.DefaultTestType,
		},
	}, commandChan)
	go router.Start(ctx)

	if cfg.ConsoleEnabled {
		go console.New(os.Stdin, commandChan).Start(ctx)
		log.Info("Type 'init' to start a measurement window, 'stop' to cancel it")
	}

	log.Info("=== IMU recorder is running ===")
	log.Infof("Sensors: %v (%s driver)", sensors.Names(), cfg.SensorDriver)
	log.Infof("Window defaults: %d ms at %d samples/s", cfg.DefaultDurationMs, cfg.DefaultSamplesPerSec)
	log.Infof("Storage: %s/%s (%s schema)", cfg.StorageDir, cfg.StorageSlot, schema.Name)
	log.Infof("Collector: %s", cfg.CollectorURL)
	log.Info("MQTT Topics:")
	log.Infof("  - Command:      %s", cfg.MQTTTopicCommand)
	log.Infof("  - Health:       %s", cfg.MQTTTopicHealth)
	log.Infof("  - Health reply: %s", cfg.MQTTTopicHealthReply)

	<-ctx.Done()

	log.Info("Shutdown signal received, stopping...")
	if scheduler.State() == services.StateRunning {
		result := scheduler.Wait()
		log.Infof("Window %s ended %s", result.ID, result.State)
	}
	log.Info("Shutdown complete. Goodbye!")
	return nil
}

func checkHealth(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sensors, err := sensor.Open(cfg)
	if err != nil {
		return err
	}
	defer sensors.Close()

	client := newMQTTClient(cfg)
	ctx, cancel := context.WithTimeout(ctx, cfg.MQTTConnectTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		log.Warnf("MQTT: %v", err)
	} else {
		defer client.Close()
	}

	reply := services.NewHealthReporter(sensors.Handles, client, nil).Check()
	out, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !reply.OK() {
		return fmt.Errorf("device unhealthy: %s", reply.Message)
	}
	return nil
}

func show(cfg *config.Config, slot string) error {
	schema, err := models.SchemaByName(cfg.DocumentSchema)
	if err != nil {
		return err
	}
	store, err := storage.NewOSStore(cfg.StorageDir)
	if err != nil {
		return err
	}

	pretty, err := storage.NewPersister(store, schema).Pretty(slot)
	if err != nil {
		return err
	}
	fmt.Println(pretty)
	return nil
}
