package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/hqtrung/foodapp-odoo-bridge/broker"
	"github.com/hqtrung/foodapp-odoo-bridge/cache"
	"github.com/hqtrung/foodapp-odoo-bridge/catalog"
	"github.com/hqtrung/foodapp-odoo-bridge/config"
	"github.com/hqtrung/foodapp-odoo-bridge/metrics"
	"github.com/hqtrung/foodapp-odoo-bridge/odoo"
	"github.com/hqtrung/foodapp-odoo-bridge/server"
	"github.com/hqtrung/foodapp-odoo-bridge/services"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize config
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Generate a unique ID for this server instance
	instanceID := uuid.New().String()
	log.Printf("Starting bridge instance with ID: %s", instanceID)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// Local cache is mandatory; it is the fallback for every read path.
	fileStore, err := cache.NewFileStore(cfg.Cache.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize local cache at %s: %v", cfg.Cache.Dir, err)
	}

	// Redis is optional. Without it the bridge runs local-only, which is
	// fine for development but loses the cache on managed restarts.
	var redisClient *redis.Client
	var remoteStore cache.Store
	if cfg.Redis.Enabled {
		redisClient, err = services.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Printf("WARNING: Redis unavailable, running with local cache only: %v", err)
		} else {
			defer services.CloseRedisClient(redisClient)
			ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
			remoteStore = cache.NewRedisStore(redisClient, cfg.Cache.RedisPrefix, ttl)
		}
	}

	// Upstream session pool
	poolManager := odoo.NewPoolManager()
	defer poolManager.CloseAll()
	pool := poolManager.Get(&cfg.Odoo, &cfg.Pool)

	// Cache orchestration
	environment := cache.DetectEnvironment()
	builder := catalog.NewBuilder(pool)
	orchestrator := cache.NewOrchestrator(pool, builder, fileStore, remoteStore, environment, instanceID)
	log.Printf("Cache orchestrator ready (environment=%s, backend=%s)", environment, orchestrator.Backend())

	// --- Dynamic Broker Initialization ---
	var messageBroker broker.MessageBroker
	brokerType := strings.ToLower(cfg.Broker.Type)
	switch brokerType {
	case "redis":
		if redisClient == nil {
			log.Fatalf("Broker type 'redis' requires redis.enabled=true and a reachable server")
		}
		messageBroker = broker.NewRedisBroker(redisClient)
	case "kafka":
		messageBroker, err = broker.NewKafkaBroker(cfg.Broker.Kafka.Brokers, cfg.Broker.Kafka.GroupID)
		if err != nil {
			log.Fatalf("Failed to create Kafka broker: %v", err)
		}
	case "none", "":
		// Single-instance deployments need no reload fan-out.
	default:
		// This should be caught by config validation, but we check again as a safeguard.
		log.Fatalf("Invalid broker type specified: %s", cfg.Broker.Type)
	}
	if messageBroker != nil {
		defer messageBroker.Close()
		orchestrator.SetNotifier(messageBroker, cfg.Broker.Channel)
		go listenForReloads(ctx, messageBroker, cfg.Broker.Channel, instanceID)
		log.Printf("Reload fan-out enabled via %s broker on %q", brokerType, cfg.Broker.Channel)
	}
	// --- End of Broker Initialization ---

	// Create and configure server
	handler := server.NewHandler(orchestrator, pool)
	addr := ":" + strconv.Itoa(cfg.Server.Port)
	srv := server.NewServer(addr, handler)

	go srv.Start()
	log.Println("Catalog bridge started on " + addr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	// Graceful shutdown
	srv.Shutdown(ctx)
}

// listenForReloads logs reload events published by peer instances. Events
// from this instance are skipped.
func listenForReloads(ctx context.Context, b broker.MessageBroker, channel, instanceID string) {
	events, err := b.Subscribe(ctx, channel)
	if err != nil {
		log.Printf("Failed to subscribe to reload events: %v", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.InstanceID == instanceID {
				continue
			}
			log.Printf("Peer %s reloaded the cache: %d categories, %d products (backend=%s)",
				event.InstanceID, event.CategoriesCount, event.ProductsCount, event.Backend)
		}
	}
}
