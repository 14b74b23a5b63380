package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Odoo.URL == "" {
		return errors.New("odoo.url must be specified")
	}
	if c.Odoo.DB == "" {
		return errors.New("odoo.db must be specified")
	}
	if c.Odoo.Username == "" {
		return errors.New("odoo.username must be specified")
	}
	if c.Odoo.Password == "" && c.Odoo.APIKey == "" {
		return errors.New("either odoo.password or odoo.apiKey must be set")
	}

	if c.Pool.MaxConnections < 1 {
		return errors.New("pool.maxConnections must be positive")
	}
	if c.Pool.MaxIdleTime < 1 {
		return errors.New("pool.maxIdleTime must be at least 1 second")
	}
	if c.Pool.MaxConnectionAge < c.Pool.MaxIdleTime {
		return errors.New("pool.maxConnectionAge should not be smaller than pool.maxIdleTime")
	}

	if c.Cache.TTLHours < 1 {
		return errors.New("cache.ttlHours must be at least 1")
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir must be specified")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return errors.New("redis.address must be specified when redis is enabled")
	}

	switch strings.ToLower(c.Broker.Type) {
	case "none":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("redis must be enabled for the redis broker")
		}
		if c.Broker.Channel == "" {
			return errors.New("broker.channel must be configured for the redis broker")
		}
	case "kafka":
		if len(c.Broker.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for kafka broker")
		}
		if c.Broker.Kafka.GroupID == "" {
			return errors.New("kafka groupID must be specified for kafka broker")
		}
		if c.Broker.Channel == "" {
			return errors.New("broker.channel must be configured for the kafka broker")
		}
	default:
		return fmt.Errorf("invalid broker type: %s. Must be 'redis', 'kafka' or 'none'", c.Broker.Type)
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "POSBRIDGE_PORT", "PORT")

	// Odoo
	viper.BindEnv("odoo.url", "POSBRIDGE_ODOO_URL", "ODOO_URL")
	viper.BindEnv("odoo.db", "POSBRIDGE_ODOO_DB", "ODOO_DB")
	viper.BindEnv("odoo.username", "POSBRIDGE_ODOO_USERNAME", "ODOO_USERNAME")
	viper.BindEnv("odoo.password", "POSBRIDGE_ODOO_PASSWORD", "ODOO_PASSWORD")
	viper.BindEnv("odoo.apiKey", "POSBRIDGE_ODOO_API_KEY", "ODOO_API_KEY")

	// Pool
	viper.BindEnv("pool.maxConnections", "POSBRIDGE_POOL_MAX_CONNECTIONS")
	viper.BindEnv("pool.maxIdleTime", "POSBRIDGE_POOL_MAX_IDLE_TIME")
	viper.BindEnv("pool.maxConnectionAge", "POSBRIDGE_POOL_MAX_CONNECTION_AGE")

	// Cache
	viper.BindEnv("cache.dir", "POSBRIDGE_CACHE_DIR")
	viper.BindEnv("cache.ttlHours", "POSBRIDGE_CACHE_TTL_HOURS")
	viper.BindEnv("cache.redisPrefix", "POSBRIDGE_CACHE_REDIS_PREFIX")

	// Redis
	viper.BindEnv("redis.enabled", "POSBRIDGE_REDIS_ENABLED")
	viper.BindEnv("redis.address", "POSBRIDGE_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "POSBRIDGE_REDIS_PASSWORD")

	// Broker
	viper.BindEnv("broker.type", "POSBRIDGE_BROKER_TYPE")
	viper.BindEnv("broker.channel", "POSBRIDGE_BROKER_CHANNEL")
	viper.BindEnv("broker.kafka.brokers", "POSBRIDGE_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.groupID", "POSBRIDGE_KAFKA_GROUPID")
}
