package httpx

import (
	"sync"

	"dqx0.com/go/portkit/container"
)

// ConnectionCanceller tracks the connections each client is using so an
// abort can close them from another goroutine.
type ConnectionCanceller struct {
	mu       sync.Mutex
	byClient *container.HashMap[uint64, *container.List[Connection]]
	byConn   *container.HashMap[Connection, uint64]
}

func NewConnectionCanceller() *ConnectionCanceller {
	return &ConnectionCanceller{
		byClient: container.NewHashMap[uint64, *container.List[Connection]](container.IntegerHasher[uint64]),
		byConn:   container.NewHashMap[Connection, uint64](nil),
	}
}

// Track records conn as in use by client id. A connection belongs to one
// client at a time.
func (c *ConnectionCanceller) Track(id uint64, conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.byConn.Lookup(conn); ok {
		if owner == id {
			return
		}
		c.untrack(conn, owner)
	}
	conns, ok := c.byClient.Lookup(id)
	if !ok {
		conns = container.NewList[Connection]()
		c.byClient.Put(id, conns)
	}
	conns.Add(conn)
	c.byConn.Put(conn, id)
}

func (c *ConnectionCanceller) Untrack(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.byConn.Lookup(conn); ok {
		c.untrack(conn, owner)
	}
}

func (c *ConnectionCanceller) untrack(conn Connection, owner uint64) {
	_ = c.byConn.Erase(conn)
	conns, ok := c.byClient.Lookup(owner)
	if !ok {
		return
	}
	_ = conns.Remove(conn, false)
	if conns.Len() == 0 {
		_ = c.byClient.Erase(owner)
	}
}

// AbortConnections aborts every connection tracked for client id and
// returns how many there were.
func (c *ConnectionCanceller) AbortConnections(id uint64) int {
	c.mu.Lock()
	var victims []Connection
	if conns, ok := c.byClient.Lookup(id); ok {
		victims = conns.Slice()
	}
	c.mu.Unlock()
	for _, conn := range victims {
		_ = conn.Abort()
	}
	return len(victims)
}

// Tracked reports how many connections client id holds.
func (c *ConnectionCanceller) Tracked(id uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conns, ok := c.byClient.Lookup(id); ok {
		return conns.Len()
	}
	return 0
}
