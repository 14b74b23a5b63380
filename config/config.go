package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server  ServerConfig
	Odoo    OdooConfig
	Pool    PoolConfig
	Cache   CacheConfig
	Redis   RedisConfig
	Broker  BrokerConfig
	Metrics MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

// OdooConfig holds the upstream connection settings. Authentication uses
// either Username+Password or Username+APIKey; when an API key is present it
// is sent as the XML-RPC password, which is how Odoo expects it.
type OdooConfig struct {
	URL      string
	DB       string
	Username string
	Password string
	APIKey   string
}

type PoolConfig struct {
	MaxConnections   int
	MaxIdleTime      int // Seconds
	MaxConnectionAge int // Seconds
}

type CacheConfig struct {
	Dir         string
	TTLHours    int
	RedisPrefix string
}

type RedisConfig struct {
	Enabled     bool
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type BrokerConfig struct {
	Type    string // "redis", "kafka" or "none"
	Channel string
	Kafka   KafkaConfig
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("POSBRIDGE")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			// A config file is optional; env vars and defaults carry a full
			// deployment on Cloud Run.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}

// WirePassword returns the secret used on the wire: the API key when
// configured, the plain password otherwise.
func (c *OdooConfig) WirePassword() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.Password
}
