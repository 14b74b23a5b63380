package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Port: 8080},
		Odoo:   OdooConfig{URL: "http://localhost:8069", DB: "odoo", Username: "admin", Password: "admin"},
		Pool:   PoolConfig{MaxConnections: 10, MaxIdleTime: 300, MaxConnectionAge: 3600},
		Cache:  CacheConfig{Dir: "cache", TTLHours: 24, RedisPrefix: "foodorder_cache"},
		Redis:  RedisConfig{Enabled: true, Address: "localhost:6379"},
		Broker: BrokerConfig{Type: "none"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero port", func(c *AppConfig) { c.Server.Port = 0 }},
		{"missing odoo url", func(c *AppConfig) { c.Odoo.URL = "" }},
		{"missing odoo db", func(c *AppConfig) { c.Odoo.DB = "" }},
		{"missing credentials", func(c *AppConfig) { c.Odoo.Password = ""; c.Odoo.APIKey = "" }},
		{"zero pool size", func(c *AppConfig) { c.Pool.MaxConnections = 0 }},
		{"age below idle", func(c *AppConfig) { c.Pool.MaxConnectionAge = 10; c.Pool.MaxIdleTime = 300 }},
		{"zero ttl", func(c *AppConfig) { c.Cache.TTLHours = 0 }},
		{"missing cache dir", func(c *AppConfig) { c.Cache.Dir = "" }},
		{"redis enabled without address", func(c *AppConfig) { c.Redis.Address = "" }},
		{"unknown broker", func(c *AppConfig) { c.Broker.Type = "rabbitmq" }},
		{"redis broker without redis", func(c *AppConfig) { c.Broker.Type = "redis"; c.Redis.Enabled = false }},
		{"redis broker without channel", func(c *AppConfig) { c.Broker.Type = "redis"; c.Broker.Channel = "" }},
		{"kafka broker without brokers", func(c *AppConfig) { c.Broker.Type = "kafka" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAPIKeyCountsAsCredential(t *testing.T) {
	cfg := validConfig()
	cfg.Odoo.Password = ""
	cfg.Odoo.APIKey = "abc123"
	assert.NoError(t, cfg.Validate())
}

func TestWirePassword(t *testing.T) {
	c := OdooConfig{Password: "plain"}
	assert.Equal(t, "plain", c.WirePassword())

	c.APIKey = "key-wins"
	assert.Equal(t, "key-wins", c.WirePassword())
}
