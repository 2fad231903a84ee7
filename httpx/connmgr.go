package httpx

import (
	"sync"
	"sync/atomic"
	"time"

	"dqx0.com/go/portkit/container"
	"dqx0.com/go/portkit/internal/obs"
)

// ConnectionManagerConfig tunes a ConnectionManager.
type ConnectionManagerConfig struct {
	MaxConnections   int
	MaxConnectionAge time.Duration
	CleanupInterval  time.Duration

	Logger obs.Logger
	Meter  obs.Meter
}

func DefaultConnectionManagerConfig() ConnectionManagerConfig {
	return ConnectionManagerConfig{
		MaxConnections:   DefaultMaxConnections,
		MaxConnectionAge: DefaultMaxConnectionAge,
		CleanupInterval:  DefaultCleanupInterval,
	}
}

type poolEntry struct {
	conn Connection
	at   time.Time
}

// ConnectionManager keeps idle persistent connections for reuse. Entries
// are ordered oldest first and expire after MaxConnectionAge.
type ConnectionManager struct {
	cfg ConnectionManagerConfig
	log obs.Logger
	now func() time.Time

	mu   sync.Mutex
	pool container.List[*poolEntry]

	once    sync.Once
	aborted atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

func NewConnectionManager(cfg ConnectionManagerConfig) *ConnectionManager {
	def := DefaultConnectionManagerConfig()
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if cfg.MaxConnectionAge <= 0 {
		cfg.MaxConnectionAge = def.MaxConnectionAge
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	return &ConnectionManager{
		cfg:  cfg,
		log:  obs.Named(cfg.Logger, "portkit.http.connection-manager"),
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the reaper goroutine. It is safe to call more than once.
func (m *ConnectionManager) Start() {
	m.once.Do(func() {
		go func() {
			defer close(m.done)
			ticker := time.NewTicker(m.cfg.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if m.aborted.Load() {
						return
					}
					m.mu.Lock()
					m.cleanup()
					m.mu.Unlock()
				case <-m.stop:
					return
				}
			}
		}()
	})
}

// cleanup closes expired connections at the head of the pool. m.mu is held.
func (m *ConnectionManager) cleanup() {
	now := m.now()
	for m.pool.Len() > 0 {
		head := m.pool.First()
		if now.Before(head.Value().at.Add(m.cfg.MaxConnectionAge)) {
			return
		}
		m.evict(head)
	}
}

func (m *ConnectionManager) evict(it container.Iterator[*poolEntry]) {
	e := it.Value()
	_ = m.pool.Erase(it)
	_ = e.conn.Close()
	m.log.Logf(obs.Fine, "evicted connection to %s", e.conn.RemoteAddr())
	m.metricCounter("portkit_pool_evicted_total", 1)
}

// FindConnection removes and returns a pooled connection whose remote
// address is addr.
func (m *ConnectionManager) FindConnection(addr string) (Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup()
	it := m.pool.Find(func(e *poolEntry) bool {
		ra := e.conn.RemoteAddr()
		return ra != nil && ra.String() == addr
	}, 0)
	if !it.Valid() {
		return nil, false
	}
	e := it.Value()
	_ = m.pool.Erase(it)
	m.log.Logf(obs.Fine, "reusing connection to %s", addr)
	m.metricCounter("portkit_pool_reused_total", 1)
	return e.conn, true
}

// Recycle puts conn at the tail of the pool, evicting the oldest entries
// when the pool is full. After Close, conn is closed instead.
func (m *ConnectionManager) Recycle(conn Connection) error {
	if m.aborted.Load() {
		return conn.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup()
	for m.pool.Len() >= m.cfg.MaxConnections {
		m.evict(m.pool.First())
	}
	now := m.now()
	if r, ok := conn.(recyclable); ok {
		r.markRecycled(now)
	}
	m.pool.Add(&poolEntry{conn: conn, at: now})
	m.metricCounter("portkit_pool_recycled_total", 1)
	return nil
}

func (m *ConnectionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.Len()
}

// Close stops the reaper and closes every pooled connection.
func (m *ConnectionManager) Close() error {
	if !m.aborted.CompareAndSwap(false, true) {
		return nil
	}
	close(m.stop)
	m.mu.Lock()
	for m.pool.Len() > 0 {
		e, _ := m.pool.PopHead()
		_ = e.conn.Close()
	}
	m.mu.Unlock()
	return nil
}

func (m *ConnectionManager) metricCounter(name string, value float64, labels ...obs.Label) {
	obs.OrNopMeter(m.cfg.Meter).Counter(name, value, labels...)
}
