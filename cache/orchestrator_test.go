package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hqtrung/foodapp-odoo-bridge/broker"
	"github.com/hqtrung/foodapp-odoo-bridge/catalog"
	"github.com/hqtrung/foodapp-odoo-bridge/odoo"
)

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	snapshot *catalog.Snapshot
	writeErr error
	readErr  error
	writes   int
}

func (m *memStore) Write(_ context.Context, s *catalog.Snapshot) (catalog.Metadata, error) {
	if m.writeErr != nil {
		return catalog.Metadata{}, m.writeErr
	}
	m.snapshot = s
	m.writes++
	return s.Metadata(), nil
}

func (m *memStore) ReadCategories(_ context.Context) ([]catalog.Category, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.snapshot == nil {
		return nil, nil
	}
	return m.snapshot.Categories, nil
}

func (m *memStore) ReadProducts(_ context.Context) ([]catalog.Product, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.snapshot == nil {
		return nil, nil
	}
	return m.snapshot.Products, nil
}

func (m *memStore) ReadProductsByCategory(ctx context.Context, categoryID int) ([]catalog.Product, error) {
	products, err := m.ReadProducts(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []catalog.Product
	for _, p := range products {
		if p.CategoryID == categoryID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (m *memStore) ReadAttributes(_ context.Context) ([]catalog.Attribute, error) {
	if m.readErr != nil || m.snapshot == nil {
		return nil, m.readErr
	}
	return m.snapshot.Attributes, nil
}

func (m *memStore) ReadAttributeValues(_ context.Context) ([]catalog.AttributeValue, error) {
	if m.readErr != nil || m.snapshot == nil {
		return nil, m.readErr
	}
	return m.snapshot.AttributeValues, nil
}

func (m *memStore) ReadProductAttributes(_ context.Context) (map[string]catalog.ProductAttributes, error) {
	if m.readErr != nil || m.snapshot == nil {
		return nil, m.readErr
	}
	return m.snapshot.ProductAttributes, nil
}

func (m *memStore) ReadMetadata(_ context.Context) (catalog.Metadata, error) {
	if m.readErr != nil {
		return catalog.Metadata{}, m.readErr
	}
	if m.snapshot == nil {
		return catalog.Metadata{}, nil
	}
	return m.snapshot.Metadata(), nil
}

func (m *memStore) IsEmpty(ctx context.Context) bool {
	categories, err := m.ReadCategories(ctx)
	if err != nil {
		return true
	}
	products, _ := m.ReadProducts(ctx)
	return len(categories) == 0 || len(products) == 0
}

type stubLoader struct {
	snapshot *catalog.Snapshot
	err      error
	calls    int
}

func (l *stubLoader) BuildSnapshot(_ context.Context) (*catalog.Snapshot, []catalog.Anomaly, error) {
	l.calls++
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.snapshot, nil, nil
}

type stubPool struct {
	session    *odoo.Session
	acquireErr error
	released   int
}

func (p *stubPool) Acquire(_ context.Context) (*odoo.Session, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.session, nil
}

func (p *stubPool) Release(_ *odoo.Session) { p.released++ }

func (p *stubPool) Stats() odoo.PoolStats { return odoo.PoolStats{} }

type recordingBroker struct {
	events []broker.ReloadEvent
	err    error
}

func (b *recordingBroker) Publish(_ context.Context, _ string, event broker.ReloadEvent) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroker) Subscribe(_ context.Context, _ string) (<-chan broker.ReloadEvent, error) {
	return nil, errors.New("not implemented")
}

func (b *recordingBroker) Close() error { return nil }

func TestOrchestratorBackendSelection(t *testing.T) {
	local := &memStore{}
	remote := &memStore{}

	cases := []struct {
		name    string
		env     Environment
		remote  Store
		backend Backend
	}{
		{"managed with remote", EnvManaged, remote, BackendRemote},
		{"managed without remote", EnvManaged, nil, BackendLocal},
		{"local with remote", EnvLocal, remote, BackendLocal},
		{"local without remote", EnvLocal, nil, BackendLocal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, tc.remote, tc.env, "i-1")
			assert.Equal(t, tc.backend, o.Backend())
		})
	}
}

func TestOrchestratorReloadWritesBothStores(t *testing.T) {
	local := &memStore{}
	remote := &memStore{}
	loader := &stubLoader{snapshot: testSnapshot()}
	o := NewOrchestrator(&stubPool{}, loader, local, remote, EnvManaged, "i-1")

	meta, err := o.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, local.writes)
	assert.Equal(t, 1, remote.writes)
	assert.Equal(t, string(BackendRemote), meta.Backend)
	assert.Equal(t, string(EnvManaged), meta.Environment)
	assert.Equal(t, 2, meta.ProductsCount)
}

func TestOrchestratorReloadDegradesOnRemoteWriteFailure(t *testing.T) {
	local := &memStore{}
	remote := &memStore{writeErr: errors.New("redis down")}
	loader := &stubLoader{snapshot: testSnapshot()}
	o := NewOrchestrator(&stubPool{}, loader, local, remote, EnvManaged, "i-1")

	meta, err := o.Reload(context.Background())
	require.NoError(t, err, "a remote write failure must not fail the reload")
	assert.Equal(t, 1, local.writes)
	assert.Equal(t, string(BackendLocal), meta.Backend)
}

func TestOrchestratorReloadFailureLeavesCacheUntouched(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	loader := &stubLoader{err: odoo.ErrAuthFailed}
	o := NewOrchestrator(&stubPool{}, loader, local, nil, EnvLocal, "i-1")

	_, err := o.Reload(context.Background())
	assert.ErrorIs(t, err, odoo.ErrAuthFailed)
	assert.Equal(t, 0, local.writes)
	assert.Len(t, o.GetProducts(context.Background()), 2, "previous snapshot keeps serving")
}

func TestOrchestratorRemoteFirstWithLocalFallback(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	remote := &memStore{readErr: errors.New("connection refused")}
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, remote, EnvManaged, "i-1")

	products := o.GetProducts(context.Background())
	assert.Len(t, products, 2, "remote failure falls back to the local copy")

	categories := o.GetCategories(context.Background())
	assert.Len(t, categories, 1)
}

func TestOrchestratorEmptyRemoteFallsBack(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	remote := &memStore{} // reachable but never populated
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, remote, EnvManaged, "i-1")

	assert.Len(t, o.GetProducts(context.Background()), 2)
	assert.False(t, o.IsEmpty(context.Background()))
}

func TestOrchestratorLocalEnvironmentIgnoresRemoteReads(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	remote := &memStore{readErr: errors.New("must not be called")}
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, remote, EnvLocal, "i-1")

	assert.Len(t, o.GetProducts(context.Background()), 2)
}

func TestOrchestratorReadsNeverError(t *testing.T) {
	local := &memStore{readErr: errors.New("disk gone")}
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, nil, EnvLocal, "i-1")
	ctx := context.Background()

	assert.Empty(t, o.GetProducts(ctx))
	assert.Empty(t, o.GetCategories(ctx))
	assert.Empty(t, o.GetAttributes(ctx))
	assert.Empty(t, o.GetAttributeValues(ctx))
	assert.Empty(t, o.GetProductAttributes(ctx))
}

func TestOrchestratorColdCacheReturnsEmptyCollections(t *testing.T) {
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, &memStore{}, nil, EnvLocal, "i-1")
	ctx := context.Background()

	// Never nil: an unpopulated cache serves empty collections, not null.
	assert.NotNil(t, o.GetCategories(ctx))
	assert.NotNil(t, o.GetProducts(ctx))
	assert.NotNil(t, o.GetProductsByCategory(ctx, 1))
	assert.NotNil(t, o.GetAttributes(ctx))
	assert.NotNil(t, o.GetAttributeValues(ctx))
	assert.NotNil(t, o.GetProductAttributes(ctx))
}

func TestOrchestratorGetProductsByCategory(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, nil, EnvLocal, "i-1")

	burgers := o.GetProductsByCategory(context.Background(), 1)
	require.Len(t, burgers, 1)
	assert.Equal(t, 101, burgers[0].ID)

	assert.Empty(t, o.GetProductsByCategory(context.Background(), 99))
}

func TestOrchestratorGetProductAttributesByID(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, nil, EnvLocal, "i-1")

	attrs, ok := o.GetProductAttributesByID(context.Background(), "101")
	require.True(t, ok)
	assert.Equal(t, 101, attrs.ProductID)

	_, ok = o.GetProductAttributesByID(context.Background(), "999")
	assert.False(t, ok)
}

func TestOrchestratorStatusFallsBackToLocal(t *testing.T) {
	local := &memStore{snapshot: testSnapshot()}
	remote := &memStore{readErr: errors.New("timeout")}
	o := NewOrchestrator(&stubPool{}, &stubLoader{}, local, remote, EnvManaged, "i-1")

	status := o.Status(context.Background())
	assert.Equal(t, string(BackendLocal), status.Backend)
	assert.Equal(t, 1, status.CategoriesCount)
}

func TestOrchestratorReloadPublishesEvent(t *testing.T) {
	local := &memStore{}
	loader := &stubLoader{snapshot: testSnapshot()}
	o := NewOrchestrator(&stubPool{}, loader, local, nil, EnvLocal, "instance-7")
	rec := &recordingBroker{}
	o.SetNotifier(rec, "cache:reloads")

	_, err := o.Reload(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "instance-7", rec.events[0].InstanceID)
	assert.Equal(t, 2, rec.events[0].ProductsCount)
}

func TestOrchestratorReloadSurvivesPublishFailure(t *testing.T) {
	local := &memStore{}
	loader := &stubLoader{snapshot: testSnapshot()}
	o := NewOrchestrator(&stubPool{}, loader, local, nil, EnvLocal, "i-1")
	o.SetNotifier(&recordingBroker{err: errors.New("broker down")}, "cache:reloads")

	_, err := o.Reload(context.Background())
	assert.NoError(t, err, "reload events are best effort")
}

func TestOrchestratorTestConnection(t *testing.T) {
	pool := &stubPool{session: &odoo.Session{ID: "s-1", UID: 2}}
	o := NewOrchestrator(pool, &stubLoader{}, &memStore{}, nil, EnvLocal, "i-1")

	status := o.TestConnection(context.Background())
	assert.Equal(t, "success", status.Odoo.Status)
	assert.True(t, status.Odoo.Authenticated)
	assert.Equal(t, 2, status.Odoo.UserID)
	assert.Equal(t, 1, pool.released, "the probe session must be handed back")
	assert.Nil(t, status.Remote)
}

func TestOrchestratorTestConnectionAuthFailure(t *testing.T) {
	pool := &stubPool{acquireErr: odoo.ErrAuthFailed}
	o := NewOrchestrator(pool, &stubLoader{}, &memStore{}, nil, EnvLocal, "i-1")

	status := o.TestConnection(context.Background())
	assert.Equal(t, "unauthorized", status.Odoo.Status)
	assert.False(t, status.Odoo.Authenticated)
}

func TestDetectEnvironment(t *testing.T) {
	t.Setenv("K_SERVICE", "")
	assert.Equal(t, EnvLocal, DetectEnvironment())

	t.Setenv("K_SERVICE", "catalog-bridge")
	assert.Equal(t, EnvManaged, DetectEnvironment())
}

func TestReloadEventTimestampFlows(t *testing.T) {
	local := &memStore{}
	snapshot := testSnapshot()
	snapshot.UpdatedAt = time.Date(2026, 8, 20, 7, 30, 0, 0, time.UTC)
	loader := &stubLoader{snapshot: snapshot}
	o := NewOrchestrator(&stubPool{}, loader, local, nil, EnvLocal, "i-1")
	rec := &recordingBroker{}
	o.SetNotifier(rec, "cache:reloads")

	_, err := o.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.events, 1)
	assert.Equal(t, snapshot.UpdatedAt, rec.events[0].ReloadedAt)
}
