// Package gateway bridges local ledger mutations and remote peers over
// a persistent websocket connection per client, with at-least-once,
// best-effort delivery. There is no durable queue and no replay: a
// reconnecting client rejoins its rooms and re-fetches authoritative
// state through the resync endpoint instead of resuming a stream.
//
// Ordering is per-connection FIFO only. Concurrent mutations from two
// members can interleave either way; the ledger store's idempotent,
// no-op-on-missing mutators are what keep interleavings from
// corrupting state, not a version check.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabsync/tabsync/internal/metrics"
)

// Applier is the inbound side: remote mutations re-enter the system
// through the same code path as local ones. Implemented by the ledger
// service, which re-validates before applying (peers are trusted to
// have validated, but re-validation is cheap hardening).
type Applier interface {
	ApplyRemote(ctx context.Context, origin string, msg Message) error

	// ApplyRelayed folds a mutation from a peer process into the local
	// ledger. The originating process already persisted it, so this
	// must touch in-memory state only.
	ApplyRelayed(ctx context.Context, msg Message) error

	// IsMember reports whether username belongs to the group. Gates
	// room joins.
	IsMember(ctx context.Context, groupID, username string) bool
}

// Broadcaster is the outbound side, consumed by the ledger service.
// Implementations must not roll anything back on failure: broadcast is
// best-effort and the local mutation always stands.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message)
}

// Gateway wires the hub, the inbound applier and the optional
// cross-process bridge together.
type Gateway struct {
	hub     *Hub
	applier Applier
	bridge  *Bridge

	upgrader websocket.Upgrader
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// New creates a gateway around the given hub. bridge may be nil for
// single-process deployments.
func New(hub *Hub, bridge *Bridge) *Gateway {
	return &Gateway{
		hub:    hub,
		bridge: bridge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients are same-origin in this deployment; CORS
			// is already handled at the HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetApplier installs the inbound mutation handler. Set once at wiring
// time; the service depends on the gateway for broadcast, so the
// reverse edge is injected here instead of at construction.
func (g *Gateway) SetApplier(a Applier) {
	g.applier = a
}

// Broadcast fans one mutation out to the group's room, excluding the
// connection it arrived on, and relays it to peer processes when
// a bridge is configured. Failures are logged and never propagate: the
// local mutation is already applied and must stand.
func (g *Gateway) Broadcast(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode broadcast", "group_id", msg.GroupID, "kind", msg.Kind, "error", err)
		return
	}

	delivered := g.hub.Emit(groupRoom(msg.GroupID), payload, msg.ConnID)
	metrics.BroadcastsSent.Inc()
	slog.Debug("broadcast sent",
		"group_id", msg.GroupID,
		"kind", msg.Kind,
		"origin", msg.Origin,
		"delivered", delivered,
	)

	if g.bridge != nil {
		g.bridge.Publish(ctx, msg)
	}
}

// deliverRelayed handles a mutation that arrived over the bridge from
// a peer process: it is folded into the local ledger first, so this
// instance's snapshots and balances stay current, then emitted to
// local clients. It is not re-published to the bridge.
func (g *Gateway) deliverRelayed(msg Message) {
	if g.applier != nil {
		if err := g.applier.ApplyRelayed(context.Background(), msg); err != nil {
			slog.Warn("failed to apply relayed mutation",
				"group_id", msg.GroupID,
				"kind", msg.Kind,
				"error", err,
			)
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode relayed mutation", "group_id", msg.GroupID, "error", err)
		return
	}
	g.hub.Emit(groupRoom(msg.GroupID), payload, msg.ConnID)
}

// HandleWS upgrades the request to a websocket session for username.
// The client is joined to its identity room and to each group in
// groups; further joins and leaves arrive as frames on the connection.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request, username string, groups []string) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "user", username, "error", err)
		return
	}

	client := newClient(username)
	g.hub.Join(identityRoom(username), client)
	for _, groupID := range groups {
		g.hub.Join(groupRoom(groupID), client)
	}
	metrics.ConnectedClients.Inc()
	slog.Info("client connected", "user", username, "groups", len(groups))

	go g.writePump(conn, client)
	go g.readPump(conn, client)
}

// readPump dispatches inbound frames until the connection drops.
func (g *Gateway) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		g.hub.LeaveAll(client)
		client.close()
		conn.Close()
		metrics.ConnectedClients.Dec()
		slog.Info("client disconnected", "user", client.Username)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "user", client.Username, "error", err)
			}
			return
		}

		switch f.Type {
		case "join":
			if f.GroupID != "" {
				g.handleJoin(client, f.GroupID)
			}
		case "leave":
			if f.GroupID != "" {
				g.hub.Leave(groupRoom(f.GroupID), client)
			}
		case "mutation":
			if f.Mutation == nil || g.applier == nil {
				continue
			}
			msg := *f.Mutation
			msg.Origin = client.Username
			msg.ConnID = client.id
			if err := g.applier.ApplyRemote(context.Background(), client.Username, msg); err != nil {
				slog.Warn("rejected remote mutation",
					"user", client.Username,
					"group_id", msg.GroupID,
					"kind", msg.Kind,
					"error", err,
				)
			}
		default:
			slog.Debug("ignoring unknown frame", "user", client.Username, "type", f.Type)
		}
	}
}

// writePump drains the client's send queue onto the connection and
// keeps the connection alive with pings.
func (g *Gateway) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleJoin admits the client to a group room only when it is a
// member. A join frame carries a bare group id, so unlike mutation
// frames it would otherwise let any authenticated user eavesdrop on
// any group's stream.
func (g *Gateway) handleJoin(client *Client, groupID string) {
	if g.applier == nil || !g.applier.IsMember(context.Background(), groupID, client.Username) {
		slog.Warn("rejected room join", "user", client.Username, "group_id", groupID)
		return
	}
	g.hub.Join(groupRoom(groupID), client)
}

func groupRoom(groupID string) string { return "group:" + groupID }

func identityRoom(username string) string { return "user:" + username }
