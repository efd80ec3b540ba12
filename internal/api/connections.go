package api

import (
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/connection"
)

var (
	ErrUnknownConnection = errors.New("connection not found or expired: connect again")
	ErrConnectionChanged = errors.New("connection changed while verifying: try again")
)

// entry pairs a connection with a revision bumped on every state change.
type entry struct {
	conn *connection.Connection
	rev  uint64
}

// Connections keeps live connection states in memory only, so credentials
// never reach the database. Entries expire after ttl without use.
type Connections struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewConnections(ttl time.Duration) *Connections {
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Connections{cache: cache.New(ttl, cleanup)}
}

func (c *Connections) Save(conn *connection.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rev uint64
	if e, err := c.get(conn.ID); err == nil {
		rev = e.rev + 1
	}
	c.cache.Set(conn.ID, &entry{conn: conn, rev: rev}, cache.DefaultExpiration)
}

func (c *Connections) Delete(id string) {
	c.cache.Delete(id)
}

// View returns a copy of the connection state.
func (c *Connections) View(id string) (connection.Connection, error) {
	conn, _, err := c.Snapshot(id)
	return conn, err
}

// Snapshot returns a copy of the connection state with its revision, for
// use with Commit.
func (c *Connections) Snapshot(id string) (connection.Connection, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.get(id)
	if err != nil {
		return connection.Connection{}, 0, err
	}
	return *e.conn, e.rev, nil
}

// Commit stores conn only if the registry entry is still at rev. It returns
// ErrConnectionChanged when another change landed since the Snapshot, and
// the current state in that case.
func (c *Connections) Commit(conn connection.Connection, rev uint64) (connection.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.get(conn.ID)
	if err != nil {
		return connection.Connection{}, err
	}
	if e.rev != rev {
		return *e.conn, ErrConnectionChanged
	}
	e.conn = &conn
	e.rev++
	c.cache.Set(conn.ID, e, cache.DefaultExpiration)
	return conn, nil
}

// Update applies fn to the stored connection and refreshes its expiry.
func (c *Connections) Update(id string, fn func(*connection.Connection) error) (connection.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.get(id)
	if err != nil {
		return connection.Connection{}, err
	}
	next := *e.conn
	if err := fn(&next); err != nil {
		return *e.conn, err
	}
	e.conn = &next
	e.rev++
	c.cache.Set(id, e, cache.DefaultExpiration)
	return next, nil
}

// Target resolves a ready connection into the tuple the coach calls with and
// extends its expiry.
func (c *Connections) Target(id string) (coach.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.get(id)
	if err != nil {
		return coach.Connection{}, err
	}
	conn := e.conn
	if err := conn.Ready(); err != nil {
		return coach.Connection{}, err
	}
	c.cache.Set(id, e, cache.DefaultExpiration)
	return coach.Connection{Backend: conn.Backend, Credential: conn.Credential, Model: conn.Model}, nil
}

func (c *Connections) get(id string) (*entry, error) {
	if id == "" {
		return nil, ErrUnknownConnection
	}
	x, found := c.cache.Get(id)
	if !found {
		return nil, ErrUnknownConnection
	}
	return x.(*entry), nil
}
