package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const collectorEnvPrefix = "COLLECTOR"

// CollectorConfig configures the reference collector service
type CollectorConfig struct {
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`

	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`

	Debug bool `mapstructure:"debug"`
}

// ClickHouseConfig holds the archive connection settings
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CollectorFlags registers the flags LoadCollector reads
func CollectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file (yaml)")
	cmd.Flags().StringP("listen", "l", ":8080", "address the collector listens on")
	cmd.Flags().String("path", "/measurements", "path documents are posted to")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

// LoadCollector resolves the collector configuration. Command line flags
// win over COLLECTOR_* environment variables, which win over the
// configuration file.
func LoadCollector(cmd *cobra.Command) (*CollectorConfig, error) {
	v := viper.New()
	v.SetDefault("listen", ":8080")
	v.SetDefault("path", "/measurements")
	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.database", "imu")
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("clickhouse.password", "")
	v.SetDefault("debug", false)

	if file, err := cmd.Flags().GetString("config"); err == nil && file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		log.Infof("Config: using %s", v.ConfigFileUsed())
	}

	v.SetEnvPrefix(collectorEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"listen", "path", "debug"} {
		if flag := cmd.Flags().Lookup(key); flag != nil {
			_ = v.BindPFlag(key, flag)
		}
	}

	cfg := &CollectorConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode collector config: %w", err)
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return nil, fmt.Errorf("collector path %q must start with /", cfg.Path)
	}
	return cfg, nil
}
