package realtime

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// connection is one live websocket session. It is associated with exactly
// one user for its lifetime and carries the bearer credential presented at
// handshake, which relay operations forward to the backend.
type connection struct {
	id         string
	userID     string
	credential string

	sock    *websocket.Conn
	writeMu sync.Mutex

	// cancel aborts any in-flight relay operation for this connection, so a
	// client disconnect mid-stream releases the upstream request.
	cancel context.CancelFunc
}

// send writes one event to the socket. Writes are serialized per
// connection; gorilla/websocket allows only one concurrent writer.
func (c *connection) send(event ServerEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteJSON(event)
}

// groupRegistry maintains the connection→user associations and the per-user
// broadcast groups. Connections are many-to-one to users (multi-device).
type groupRegistry struct {
	mu     sync.RWMutex
	byConn map[string]*connection
	byUser map[string]map[string]*connection
}

func newGroupRegistry() *groupRegistry {
	return &groupRegistry{
		byConn: make(map[string]*connection),
		byUser: make(map[string]map[string]*connection),
	}
}

// add joins a connection to its user's group.
func (g *groupRegistry) add(conn *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byConn[conn.id] = conn
	group, ok := g.byUser[conn.userID]
	if !ok {
		group = make(map[string]*connection)
		g.byUser[conn.userID] = group
	}
	group[conn.id] = conn
}

// remove takes a connection out of its user's group. It is a no-op for
// unknown connection ids.
func (g *groupRegistry) remove(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	conn, ok := g.byConn[connID]
	if !ok {
		return
	}
	delete(g.byConn, connID)
	if group, ok := g.byUser[conn.userID]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(g.byUser, conn.userID)
		}
	}
}

// members returns a snapshot of the user's group.
func (g *groupRegistry) members(userID string) []*connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	group := g.byUser[userID]
	if len(group) == 0 {
		return nil
	}
	conns := make([]*connection, 0, len(group))
	for _, conn := range group {
		conns = append(conns, conn)
	}
	return conns
}

// broadcast pushes one event to every live connection in the user's group.
// A no-op if nobody is listening; write failures are logged, the read loop
// of the broken connection handles its teardown.
func (g *groupRegistry) broadcast(userID string, event ServerEvent, logger zerolog.Logger) {
	for _, conn := range g.members(userID) {
		if err := conn.send(event); err != nil {
			logger.Warn().Err(err).Str("conn", conn.id).Str("user", userID).Msg("Failed to write event to connection.")
		}
	}
}

// closeAll force-terminates every connection, used during shutdown.
func (g *groupRegistry) closeAll() {
	g.mu.Lock()
	conns := make([]*connection, 0, len(g.byConn))
	for _, conn := range g.byConn {
		conns = append(conns, conn)
	}
	g.mu.Unlock()

	for _, conn := range conns {
		conn.cancel()
		_ = conn.sock.Close()
	}
}
