// Package pool implements the bounded connection pool from spec §4.5:
// a fixed maximum connection count, an LIFO idle free-list, and waiters
// that block when the pool is both empty of idle connections and at
// capacity. A release wakes every waiter at once and whichever one
// reacquires the lock first is served; waiters are not served in arrival
// order. Ground: JeelKantaria-db-bouncer's TenantPool for the
// mutex+sync.Cond waiter shape, and DaKeiser-vitess's ResourcePool for the
// stats surface.
package pool

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/sqly-go/sqly/conn"
	"github.com/sqly-go/sqly/rawconn"
)

// Options configures how the pool dials new connections and how many it
// may hold at once.
type Options struct {
	Addr     string
	User     string
	Password string
	Database string
	TLS      *tls.Config

	// MaxConnections bounds the total number of connections, idle or
	// acquired, the pool will ever have open at once.
	MaxConnections int
}

// Pool hands out *conn.Conn connections bounded by Options.MaxConnections,
// per spec §4.5. The zero value is not usable; construct with New.
type Pool struct {
	opts Options
	log  *slog.Logger
	cond condVar

	idle    []*conn.Conn // LIFO free-list
	total   int
	metrics *Metrics
}

// condVar is the small sync.Mutex+sync.Cond pair TenantPool uses for its
// waiter queue; spelled out as its own type so Pool's zero value story
// stays simple in New.
type condVar struct {
	mu   chan struct{} // 1-buffered channel used as a mutex
	wake chan struct{} // closed and replaced on every broadcast
}

// New constructs a Pool with its own Metrics, registered in a private
// prometheus registry (spec's ambient observability stack, carried from
// db-bouncer even though the spec's Non-goals exclude a full metrics
// subsystem). A nil log falls back to slog.Default().
func New(opts Options, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		opts:    opts,
		log:     log,
		cond:    newCondVar(),
		metrics: NewMetrics(),
	}
}

func newCondVar() condVar {
	return condVar{mu: make(chan struct{}, 1), wake: make(chan struct{})}
}

func (c *condVar) lock()   { c.mu <- struct{}{} }
func (c *condVar) unlock() { <-c.mu }

// broadcast wakes every goroutine currently blocked in wait.
func (c *condVar) broadcast() {
	close(c.wake)
	c.wake = make(chan struct{})
}

// wait releases the lock, blocks until the next broadcast or ctx
// cancellation, then reacquires the lock. Must be called with the lock
// held.
func (c *condVar) wait(ctx context.Context) {
	ch := c.wake
	c.unlock()
	select {
	case <-ch:
	case <-ctx.Done():
	}
	c.lock()
}

// Guard is the handle Acquire returns. Go has no destructor to return a
// connection to the pool on drop (spec §4.5's "guard that, on drop,
// returns the underlying connection"); callers must call Release
// explicitly, idiomatically via defer:
//
//	g, err := p.Acquire(ctx)
//	if err != nil { ... }
//	defer g.Release()
type Guard struct {
	pool     *Pool
	conn     *conn.Conn
	released bool
}

// Conn returns the underlying connection.
func (g *Guard) Conn() *conn.Conn { return g.conn }

// Release returns the connection to the pool, or discards it if broken.
// Calling Release more than once is a no-op.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.pool.release(g.conn)
}

// Acquire implements spec §4.5's acquire(): reuse an idle connection if
// one exists (cleaning it first and discarding it if cleanup reveals it's
// Broken), else open a new one under the MaxConnections bound, else wait
// for a release to wake it; all waiters wake together and race for the
// lock, so there is no first-come-first-served order. A ctx cancellation
// while waiting returns ctx.Err() without consuming a connection meant for
// another waiter: a woken waiter checks its ctx first, under the lock, and
// returns the ctx error without looking for a connection if it is done.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	p.cond.lock()
	for {
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.cond.unlock()

			if err := c.Cleanup(ctx); err != nil || c.Broken() {
				_ = c.Close()
				p.cond.lock()
				p.total--
				p.metrics.Discarded.Inc()
				p.cond.broadcast()
				continue
			}
			p.metrics.Acquired.Inc()
			return &Guard{pool: p, conn: c}, nil
		}

		if p.total < p.opts.MaxConnections {
			p.total++
			p.cond.unlock()

			c, err := p.dial(ctx)
			if err != nil {
				p.cond.lock()
				p.total--
				p.cond.broadcast()
				p.cond.unlock()
				return nil, err
			}
			p.metrics.Acquired.Inc()
			return &Guard{pool: p, conn: c}, nil
		}

		p.metrics.WaitCount.Inc()
		p.cond.wait(ctx)
		if err := ctx.Err(); err != nil {
			p.cond.unlock()
			return nil, err
		}
	}
}

func (p *Pool) dial(ctx context.Context) (*conn.Conn, error) {
	rc, err := rawconn.Dial(ctx, p.opts.Addr, p.opts.User, p.opts.Password, p.opts.Database, p.opts.TLS)
	if err != nil {
		return nil, err
	}
	return conn.New(rc), nil
}

// release is called from Guard.Release. It re-checks Broken (the guard's
// own operations may have left the connection unrecoverable) and discards
// rather than recycling a dead connection, per spec §7's "Pool discards
// Broken connections on release."
func (p *Pool) release(c *conn.Conn) {
	p.cond.lock()
	defer p.cond.unlock()
	if c.Broken() {
		_ = c.Close()
		p.total--
		p.metrics.Discarded.Inc()
		p.cond.broadcast()
		return
	}
	p.idle = append(p.idle, c)
	p.metrics.Released.Inc()
	p.cond.broadcast()
}

// Reload adjusts the pool's MaxConnections at runtime (ground:
// db-bouncer's config.Watcher driving a live reload of pool settings).
// Waiters blocked in Acquire are woken to re-check the new bound; a
// lowered bound does not evict connections already on loan or idle, it
// only changes how many more Acquire will ever dial.
func (p *Pool) Reload(maxConnections int) {
	p.cond.lock()
	defer p.cond.unlock()
	p.opts.MaxConnections = maxConnections
	p.cond.broadcast()
}

// Stats is a point-in-time snapshot, named after vitess ResourcePool's
// StatsJSON fields.
type Stats struct {
	Capacity int
	Idle     int
	InUse    int
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.cond.lock()
	defer p.cond.unlock()
	return Stats{
		Capacity: p.opts.MaxConnections,
		Idle:     len(p.idle),
		InUse:    p.total - len(p.idle),
	}
}

// Close discards every idle connection. Connections currently on loan are
// unaffected: releasing one after Close returns it to the idle list like
// any other release, and Close does not stop later Acquire calls from
// handing out idle connections or dialing new ones.
func (p *Pool) Close() error {
	p.cond.lock()
	defer p.cond.unlock()
	var firstErr error
	for _, c := range p.idle {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	return firstErr
}
