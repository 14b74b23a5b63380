package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 15)
	viper.SetDefault("server.writeTimeout", 30)

	// Odoo
	viper.SetDefault("odoo.url", "http://localhost:8069")
	viper.SetDefault("odoo.db", "odoo")
	viper.SetDefault("odoo.username", "admin")
	viper.SetDefault("odoo.password", "")
	viper.SetDefault("odoo.apiKey", "")

	// Session pool
	viper.SetDefault("pool.maxConnections", 10)
	viper.SetDefault("pool.maxIdleTime", 300)
	viper.SetDefault("pool.maxConnectionAge", 3600)

	// Cache
	viper.SetDefault("cache.dir", "cache")
	viper.SetDefault("cache.ttlHours", 24)
	viper.SetDefault("cache.redisPrefix", "foodorder_cache")

	// Redis
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 100)
	viper.SetDefault("redis.poolTimeout", 5)

	// Broker
	viper.SetDefault("broker.type", "none")
	viper.SetDefault("broker.channel", "cache:reloads")

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
