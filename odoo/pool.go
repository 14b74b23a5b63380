package odoo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hqtrung/foodapp-odoo-bridge/config"
	"github.com/hqtrung/foodapp-odoo-bridge/metrics"
)

// Session is an authenticated upstream handle. While pooled it is owned by
// the SessionPool; while checked out the caller borrows it and must hand it
// back through Release. A borrower stamps lastUsed on every call while the
// pool sweep reads it concurrently, so the timestamp is atomic; createdAt is
// immutable after dial and needs no guard.
type Session struct {
	ID        string
	UID       int
	client    *Client
	secret    string
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanoseconds
	inUse     bool
}

func (s *Session) markUsed() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) expired(maxAge time.Duration) bool {
	return time.Since(s.createdAt) > maxAge
}

func (s *Session) idleTooLong(maxIdle time.Duration) bool {
	return time.Since(time.Unix(0, s.lastUsed.Load())) > maxIdle
}

// ExecuteKw runs a model method on this session's authenticated connection.
func (s *Session) ExecuteKw(model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	s.markUsed()
	return s.client.ExecuteKw(s.UID, s.secret, model, method, args, kwargs)
}

// Version reports the upstream server version string. Sessions built by test
// fakes may carry no client.
func (s *Session) Version() (string, error) {
	if s.client == nil {
		return "", errors.New("odoo: session has no client")
	}
	s.markUsed()
	return s.client.Version()
}

// PoolStats is a read-only snapshot of the pool counters.
type PoolStats struct {
	PoolSize          int     `json:"pool_size"`
	ActiveConnections int     `json:"active_connections"`
	MaxConnections    int     `json:"max_connections"`
	TotalCreated      int     `json:"total_created"`
	TotalReused       int     `json:"total_reused"`
	ReuseRatio        float64 `json:"reuse_ratio"`
}

// SessionPool keeps a bounded set of authenticated sessions. The bound caps
// what is retained, not what is concurrently outstanding: Acquire never
// blocks on capacity, it authenticates a fresh session instead.
type SessionPool struct {
	url            string
	db             string
	username       string
	secret         string
	maxConnections int
	maxIdle        time.Duration
	maxAge         time.Duration

	mu           sync.Mutex
	idle         []*Session
	active       map[string]*Session
	totalCreated int
	totalReused  int

	// newSession is swapped out by tests; the default authenticates over
	// XML-RPC.
	newSession func() (*Session, error)
}

func NewSessionPool(ocfg *config.OdooConfig, pcfg *config.PoolConfig) *SessionPool {
	p := &SessionPool{
		url:            ocfg.URL,
		db:             ocfg.DB,
		username:       ocfg.Username,
		secret:         ocfg.WirePassword(),
		maxConnections: pcfg.MaxConnections,
		maxIdle:        time.Duration(pcfg.MaxIdleTime) * time.Second,
		maxAge:         time.Duration(pcfg.MaxConnectionAge) * time.Second,
		active:         make(map[string]*Session),
	}
	p.newSession = p.dial
	log.Printf("Initialized Odoo session pool: max_connections=%d", pcfg.MaxConnections)
	return p
}

func (p *SessionPool) dial() (*Session, error) {
	client, err := NewClient(p.url, p.db)
	if err != nil {
		return nil, err
	}
	uid, err := client.Authenticate(p.username, p.secret)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        uuid.New().String(),
		UID:       uid,
		client:    client,
		secret:    p.secret,
		createdAt: time.Now(),
	}
	s.markUsed()
	return s, nil
}

// Acquire returns a ready session, reusing a pooled one when possible. Safe
// for concurrent use. The authentication round-trip for a fresh session runs
// outside the pool lock.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	p.sweep()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		s.markUsed()
		s.inUse = true
		p.active[s.ID] = s
		p.totalReused++
		p.mu.Unlock()
		metrics.PoolSessionsReused.Inc()
		p.updateGauges()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.newSession()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	s.inUse = true
	p.active[s.ID] = s
	p.totalCreated++
	p.mu.Unlock()
	metrics.PoolSessionsCreated.Inc()
	p.updateGauges()
	return s, nil
}

// Release hands a session back. Expired sessions are discarded; so are
// sessions arriving while the pool is already full — the releaser is never
// blocked.
func (p *SessionPool) Release(s *Session) {
	if s == nil {
		return
	}

	p.mu.Lock()
	s.inUse = false
	s.markUsed()
	delete(p.active, s.ID)

	if s.expired(p.maxAge) {
		p.mu.Unlock()
		log.Printf("Session %s expired, not returning to pool", s.ID)
		p.updateGauges()
		return
	}
	if len(p.idle) >= p.maxConnections {
		p.mu.Unlock()
		log.Printf("Pool full, discarding session %s", s.ID)
		p.updateGauges()
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
	p.updateGauges()
}

// WithSession acquires a session, runs fn and releases on every exit path.
func (p *SessionPool) WithSession(ctx context.Context, fn func(*Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(s)
	return fn(s)
}

// ExecuteKw runs a single model call on a pooled session.
func (p *SessionPool) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	var result interface{}
	err := p.WithSession(ctx, func(s *Session) error {
		var callErr error
		result, callErr = s.ExecuteKw(model, method, args, kwargs)
		return callErr
	})
	return result, err
}

// sweep opportunistically drops expired and idle-timed-out sessions. Called
// on every Acquire; there is no background timer.
func (p *SessionPool) sweep() {
	p.mu.Lock()
	kept := p.idle[:0]
	for _, s := range p.idle {
		if s.expired(p.maxAge) || s.idleTooLong(p.maxIdle) {
			log.Printf("Removed expired pooled session %s", s.ID)
			continue
		}
		kept = append(kept, s)
	}
	p.idle = kept

	for id, s := range p.active {
		if s.expired(p.maxAge) || s.idleTooLong(p.maxIdle) {
			delete(p.active, id)
			log.Printf("Removed expired active session %s", id)
		}
	}
	p.mu.Unlock()
}

func (p *SessionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	denom := p.totalCreated + p.totalReused
	if denom == 0 {
		denom = 1
	}
	return PoolStats{
		PoolSize:          len(p.idle),
		ActiveConnections: len(p.active),
		MaxConnections:    p.maxConnections,
		TotalCreated:      p.totalCreated,
		TotalReused:       p.totalReused,
		ReuseRatio:        float64(p.totalReused) / float64(denom),
	}
}

// CloseAll drops the pool's own references. Sessions currently checked out
// are not recalled; they are simply forgotten.
func (p *SessionPool) CloseAll() {
	p.mu.Lock()
	p.idle = nil
	p.active = make(map[string]*Session)
	p.mu.Unlock()
	p.updateGauges()
	log.Printf("Closed all sessions in pool")
}

func (p *SessionPool) updateGauges() {
	p.mu.Lock()
	idle, active := len(p.idle), len(p.active)
	p.mu.Unlock()
	metrics.PoolSessionsIdle.Set(float64(idle))
	metrics.PoolSessionsActive.Set(float64(active))
}

// PoolManager owns one pool per upstream endpoint, keyed by URL, database and
// username. It is constructed once in main and passed by reference, instead
// of living as hidden package-level state.
type PoolManager struct {
	mu    sync.Mutex
	pools map[string]*SessionPool
}

func NewPoolManager() *PoolManager {
	return &PoolManager{pools: make(map[string]*SessionPool)}
}

func (m *PoolManager) Get(ocfg *config.OdooConfig, pcfg *config.PoolConfig) *SessionPool {
	key := fmt.Sprintf("%s|%s|%s", ocfg.URL, ocfg.DB, ocfg.Username)

	m.mu.Lock()
	defer m.mu.Unlock()
	if pool, ok := m.pools[key]; ok {
		return pool
	}
	pool := NewSessionPool(ocfg, pcfg)
	m.pools[key] = pool
	return pool
}

func (m *PoolManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pool := range m.pools {
		pool.CloseAll()
	}
	m.pools = make(map[string]*SessionPool)
}
