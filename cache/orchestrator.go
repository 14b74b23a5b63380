package cache

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/hqtrung/foodapp-odoo-bridge/broker"
	"github.com/hqtrung/foodapp-odoo-bridge/catalog"
	"github.com/hqtrung/foodapp-odoo-bridge/metrics"
	"github.com/hqtrung/foodapp-odoo-bridge/odoo"
)

// Environment is where the process is running. A managed deployment cannot
// rely on its local filesystem surviving a restart, so the remote store leads
// the read path there.
type Environment string

const (
	EnvLocal   Environment = "local"
	EnvManaged Environment = "managed"
)

// Backend names the active read path.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// DetectEnvironment inspects the platform signal once at startup. Cloud Run
// sets K_SERVICE.
func DetectEnvironment() Environment {
	if os.Getenv("K_SERVICE") != "" {
		return EnvManaged
	}
	return EnvLocal
}

// Loader builds a fresh snapshot from the upstream service.
// *catalog.Builder satisfies it.
type Loader interface {
	BuildSnapshot(ctx context.Context) (*catalog.Snapshot, []catalog.Anomaly, error)
}

// SessionSource is the slice of the session pool the orchestrator needs for
// connection tests.
type SessionSource interface {
	Acquire(ctx context.Context) (*odoo.Session, error)
	Release(s *odoo.Session)
	Stats() odoo.PoolStats
}

// Orchestrator owns backend selection, TTL-driven fallback and the reload
// pipeline. The read path is resolved once at construction and stored, not
// re-derived per call.
type Orchestrator struct {
	pool       SessionSource
	loader     Loader
	local      Store
	remote     Store // nil when the remote backend failed to initialize
	env        Environment
	backend    Backend
	instanceID string

	notifier broker.MessageBroker
	channel  string
}

func NewOrchestrator(pool SessionSource, loader Loader, local Store, remote Store, env Environment, instanceID string) *Orchestrator {
	backend := BackendLocal
	if env == EnvManaged && remote != nil {
		backend = BackendRemote
	}
	if env == EnvManaged && remote == nil {
		log.Printf("WARNING: managed environment without a remote store - cache will not survive restarts")
	}
	return &Orchestrator{
		pool:       pool,
		loader:     loader,
		local:      local,
		remote:     remote,
		env:        env,
		backend:    backend,
		instanceID: instanceID,
	}
}

// SetNotifier wires an optional reload-event broker.
func (o *Orchestrator) SetNotifier(b broker.MessageBroker, channel string) {
	o.notifier = b
	o.channel = channel
}

func (o *Orchestrator) Environment() Environment { return o.env }
func (o *Orchestrator) Backend() Backend         { return o.backend }

// Reload fetches the catalog, resolves it into a snapshot and replaces the
// cache wholesale. The local store is always written; the remote store when
// available. A remote write failure degrades the reload to local-only rather
// than failing it; authentication and fetch errors propagate and leave the
// previous snapshot untouched.
//
// Reload is operator-triggered and low-frequency; it carries no guard
// against concurrent invocations.
func (o *Orchestrator) Reload(ctx context.Context) (catalog.Metadata, error) {
	start := time.Now()

	snapshot, _, err := o.loader.BuildSnapshot(ctx)
	if err != nil {
		metrics.CacheReloads.WithLabelValues("failure").Inc()
		return catalog.Metadata{}, err
	}

	meta, err := o.local.Write(ctx, snapshot)
	if err != nil {
		metrics.CacheReloads.WithLabelValues("failure").Inc()
		return catalog.Metadata{}, err
	}
	meta.Backend = string(BackendLocal)
	meta.Environment = string(o.env)

	if o.remote != nil {
		remoteMeta, err := o.remote.Write(ctx, snapshot)
		if err != nil {
			// Degraded reload: the local copy is good, keep serving from it.
			log.Printf("Remote cache write failed, continuing with local cache: %v", err)
		} else {
			remoteMeta.Backend = string(BackendRemote)
			remoteMeta.Environment = string(o.env)
			meta = remoteMeta
		}
	}

	o.notifyReload(ctx, meta)

	metrics.CacheReloads.WithLabelValues("success").Inc()
	metrics.CacheReloadDuration.Observe(time.Since(start).Seconds())
	log.Printf("Cache reload completed: %d categories, %d products (backend=%s)",
		meta.CategoriesCount, meta.ProductsCount, meta.Backend)
	return meta, nil
}

func (o *Orchestrator) notifyReload(ctx context.Context, meta catalog.Metadata) {
	if o.notifier == nil {
		return
	}
	event := broker.ReloadEvent{
		InstanceID:      o.instanceID,
		ReloadedAt:      meta.LastUpdated,
		CategoriesCount: meta.CategoriesCount,
		ProductsCount:   meta.ProductsCount,
		Backend:         meta.Backend,
	}
	if err := o.notifier.Publish(ctx, o.channel, event); err != nil {
		log.Printf("Failed to publish reload event: %v", err)
	}
}

// GetCategories returns the cached categories. Reads never fail outward and
// never return nil: an empty slice means "cache not yet populated".
func (o *Orchestrator) GetCategories(ctx context.Context) []catalog.Category {
	if o.backend == BackendRemote {
		categories, err := o.remote.ReadCategories(ctx)
		if err == nil && len(categories) > 0 {
			return categories
		}
		o.fallback("categories", err)
	}
	categories, err := o.local.ReadCategories(ctx)
	if err != nil {
		log.Printf("Local categories read failed: %v", err)
	}
	if categories == nil {
		categories = []catalog.Category{}
	}
	return categories
}

func (o *Orchestrator) GetProducts(ctx context.Context) []catalog.Product {
	if o.backend == BackendRemote {
		products, err := o.remote.ReadProducts(ctx)
		if err == nil && len(products) > 0 {
			return products
		}
		o.fallback("products", err)
	}
	products, err := o.local.ReadProducts(ctx)
	if err != nil {
		log.Printf("Local products read failed: %v", err)
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products
}

func (o *Orchestrator) GetProductsByCategory(ctx context.Context, categoryID int) []catalog.Product {
	filtered := []catalog.Product{}
	for _, p := range o.GetProducts(ctx) {
		if p.CategoryID == categoryID {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func (o *Orchestrator) GetAttributes(ctx context.Context) []catalog.Attribute {
	if o.backend == BackendRemote {
		attributes, err := o.remote.ReadAttributes(ctx)
		if err == nil && len(attributes) > 0 {
			return attributes
		}
		o.fallback("attributes", err)
	}
	attributes, err := o.local.ReadAttributes(ctx)
	if err != nil {
		log.Printf("Local attributes read failed: %v", err)
	}
	if attributes == nil {
		attributes = []catalog.Attribute{}
	}
	return attributes
}

func (o *Orchestrator) GetAttributeValues(ctx context.Context) []catalog.AttributeValue {
	if o.backend == BackendRemote {
		values, err := o.remote.ReadAttributeValues(ctx)
		if err == nil && len(values) > 0 {
			return values
		}
		o.fallback("attribute_values", err)
	}
	values, err := o.local.ReadAttributeValues(ctx)
	if err != nil {
		log.Printf("Local attribute values read failed: %v", err)
	}
	if values == nil {
		values = []catalog.AttributeValue{}
	}
	return values
}

func (o *Orchestrator) GetProductAttributes(ctx context.Context) map[string]catalog.ProductAttributes {
	if o.backend == BackendRemote {
		attrs, err := o.remote.ReadProductAttributes(ctx)
		if err == nil && len(attrs) > 0 {
			return attrs
		}
		o.fallback("product_attributes", err)
	}
	attrs, err := o.local.ReadProductAttributes(ctx)
	if err != nil {
		log.Printf("Local product attributes read failed: %v", err)
	}
	if attrs == nil {
		attrs = map[string]catalog.ProductAttributes{}
	}
	return attrs
}

// GetProductAttributesByID returns the attribute document for one product.
func (o *Orchestrator) GetProductAttributesByID(ctx context.Context, productID string) (catalog.ProductAttributes, bool) {
	attrs, ok := o.GetProductAttributes(ctx)[productID]
	return attrs, ok
}

func (o *Orchestrator) fallback(collection string, err error) {
	if err != nil {
		log.Printf("Remote %s read failed, falling back to local cache: %v", collection, err)
	}
	metrics.CacheFallbacks.WithLabelValues(collection).Inc()
}

// Status reports cache metadata tagged with the active backend. A remote
// metadata failure falls back to the local store's metadata.
func (o *Orchestrator) Status(ctx context.Context) catalog.Metadata {
	if o.backend == BackendRemote {
		meta, err := o.remote.ReadMetadata(ctx)
		if err == nil {
			meta.Backend = string(BackendRemote)
			meta.Environment = string(o.env)
			return meta
		}
		log.Printf("Remote metadata read failed, falling back to local: %v", err)
	}
	meta, err := o.local.ReadMetadata(ctx)
	if err != nil {
		log.Printf("Local metadata read failed: %v", err)
	}
	meta.Backend = string(BackendLocal)
	meta.Environment = string(o.env)
	return meta
}

// IsEmpty reports whether the active read path has no usable snapshot.
func (o *Orchestrator) IsEmpty(ctx context.Context) bool {
	if o.backend == BackendRemote {
		if !o.remote.IsEmpty(ctx) {
			return false
		}
		// Remote empty or stale - the local copy may still carry data.
	}
	return o.local.IsEmpty(ctx)
}

// UpstreamStatus describes the outcome of an upstream connection probe.
type UpstreamStatus struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	UserID        int    `json:"user_id,omitempty"`
	Version       string `json:"odoo_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RemoteStatus describes the remote store health probe.
type RemoteStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ConnStatus is the structured result of TestConnection.
type ConnStatus struct {
	Odoo        UpstreamStatus `json:"odoo"`
	Remote      *RemoteStatus  `json:"remote,omitempty"`
	Backend     string         `json:"cache_backend"`
	Environment string         `json:"environment"`
}

// TestConnection exercises a pool acquire/release round-trip and, when a
// remote store is configured, its health check. Cache state is not touched.
func (o *Orchestrator) TestConnection(ctx context.Context) ConnStatus {
	status := ConnStatus{
		Backend:     string(o.backend),
		Environment: string(o.env),
	}

	session, err := o.pool.Acquire(ctx)
	if err != nil {
		status.Odoo = UpstreamStatus{Status: "error", Error: err.Error()}
		if errors.Is(err, odoo.ErrAuthFailed) {
			status.Odoo.Status = "unauthorized"
		}
	} else {
		status.Odoo = UpstreamStatus{
			Status:        "success",
			Authenticated: true,
			UserID:        session.UID,
		}
		if version, err := session.Version(); err == nil {
			status.Odoo.Version = version
		}
		o.pool.Release(session)
	}

	if o.remote != nil {
		remote := &RemoteStatus{Status: "healthy"}
		if hc, ok := o.remote.(HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				remote.Status = "unhealthy"
				remote.Error = err.Error()
			}
		}
		status.Remote = remote
	}

	return status
}
