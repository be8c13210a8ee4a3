package collab

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsjsonrpc2 "github.com/sourcegraph/jsonrpc2/websocket"

	"github.com/fork-archive-hub/blocky-editor/blocklog"
	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// Notification methods carried over a peer connection.
const (
	MethodChangesetApplied = "changeset/applied"
	MethodCursorChanged    = "cursor/changed"
)

// Receiver is what a Hub applies inbound peer notifications against.
// *controller.Controller satisfies this; it is kept as a narrow interface
// here rather than importing controller, since controller is the package
// that reaches down into collab (see Controller.AttachHub), not the other
// way around.
type Receiver interface {
	ApplyRemoteChangeset(ops []changeset.RecordedOp) error
	ApplyCursorChangedEvent(peerID string, cursor document.CursorState)
}

// Hub is the collaborative-sync transport named but left external by
// spec.md §1/§6: it fans a local Controller's changesetApplied/
// cursorChanged streams out to every connected peer, and feeds inbound
// peer notifications back to a Receiver. Each peer connection speaks
// sourcegraph/jsonrpc2 framed notifications over a gorilla/websocket
// stream, grounded on SCKelemen-lsp/server.newWebSocketConnection's
// wrapping of a *websocket.Conn in jsonrpc2/websocket's ObjectStream.
type Hub struct {
	receiver Receiver
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*jsonrpc2.Conn

	pendingMu sync.Mutex
	pending   []func()
}

// NewHub returns a Hub that applies inbound peer notifications against
// receiver. Callers that only need outbound broadcasting (no inbound
// application, e.g. a relay server with no local document) may pass nil.
func NewHub(receiver Receiver) *Hub {
	return &Hub{
		receiver: receiver,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		peers:    map[string]*jsonrpc2.Conn{},
	}
}

// ServeWS upgrades r into a websocket connection and registers it as
// peerID. Call from an http.Handler mounted at the collaboration
// endpoint.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, peerID string) error {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.addConn(peerID, wsjsonrpc2.NewObjectStream(socket))
	return nil
}

// DialWS connects to a peer's ServeWS endpoint as a client, the symmetric
// half of ServeWS.
func (h *Hub) DialWS(ctx context.Context, url, peerID string) error {
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	h.addConn(peerID, wsjsonrpc2.NewObjectStream(socket))
	return nil
}

// AddStream registers rwc as peerID using the plain VSCode object codec
// rather than a websocket framing, grounded on
// SCKelemen-lsp/server.newStreamConnection's stdio-stream path. Used for
// transports other than websocket, and by tests driving a connection over
// net.Pipe without a real network socket.
func (h *Hub) AddStream(peerID string, rwc io.ReadWriteCloser) {
	h.addConn(peerID, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}))
}

func (h *Hub) addConn(peerID string, stream jsonrpc2.ObjectStream) {
	conn := jsonrpc2.NewConn(context.Background(), stream, &hubHandler{hub: h})
	h.mu.Lock()
	if old, ok := h.peers[peerID]; ok {
		old.Close()
	}
	h.peers[peerID] = conn
	h.mu.Unlock()

	go func() {
		<-conn.DisconnectNotify()
		h.mu.Lock()
		if h.peers[peerID] == conn {
			delete(h.peers, peerID)
		}
		h.mu.Unlock()
	}()
}

// PeerIDs returns the ids of every currently connected peer.
func (h *Hub) PeerIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.peers))
	for id := range h.peers {
		out = append(out, id)
	}
	return out
}

// Broadcast notifies every connected peer that a changeset was applied
// locally, producing version and ops. Wired from the changesetApplied
// stream subscriber Controller.AttachHub installs: remote peers replay
// ops via State.ApplyRemoteOps, funnelling through the same Changeset
// apply path as a local edit (spec.md §5's ordering guarantees hold for
// remote-origin changesets too).
func (h *Hub) Broadcast(ctx context.Context, version int, ops []changeset.RecordedOp) {
	h.notifyAll(ctx, MethodChangesetApplied, ChangesetAppliedParams{Version: version, Ops: EncodeOps(ops)})
}

// BroadcastCursor notifies every connected peer that peerID's cursor moved
// to cursor. Wired from Controller.CursorChanged().
func (h *Hub) BroadcastCursor(ctx context.Context, peerID string, cursor document.CursorState) {
	h.notifyAll(ctx, MethodCursorChanged, CursorChangedParams{PeerID: peerID, Cursor: cursor})
}

func (h *Hub) notifyAll(ctx context.Context, method string, params any) {
	h.mu.Lock()
	conns := make([]*jsonrpc2.Conn, 0, len(h.peers))
	for _, conn := range h.peers {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Notify(ctx, method, params); err != nil {
			blocklog.Warn().Err(err).Msg("collab: notify failed, peer likely disconnected")
		}
	}
}

// Close disconnects every peer connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.peers {
		conn.Close()
		delete(h.peers, id)
	}
}

// Drain runs every inbound peer notification queued since the last call,
// on the caller's own goroutine. The host calls this from the same
// single-threaded loop that drives local Changeset.Apply calls (e.g.
// alongside Controller.FlushNextTick), so a remote-origin edit is never
// applied concurrently with a local one even though the websocket read
// loop that received it runs on its own goroutine per the
// gorilla/websocket idiom.
func (h *Hub) Drain() {
	h.pendingMu.Lock()
	pending := h.pending
	h.pending = nil
	h.pendingMu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (h *Hub) enqueue(fn func()) {
	h.pendingMu.Lock()
	h.pending = append(h.pending, fn)
	h.pendingMu.Unlock()
}

// hubHandler implements jsonrpc2.Handler, decoding the two notification
// kinds a peer connection carries and queuing their effect for Drain.
type hubHandler struct{ hub *Hub }

func (h *hubHandler) Handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if h.hub.receiver == nil {
		return
	}
	switch req.Method {
	case MethodChangesetApplied:
		var params ChangesetAppliedParams
		if req.Params != nil {
			if err := json.Unmarshal(*req.Params, &params); err != nil {
				blocklog.Warn().Err(err).Msg("collab: malformed changeset/applied params")
				return
			}
		}
		ops := DecodeOps(params.Ops)
		h.hub.enqueue(func() {
			if err := h.hub.receiver.ApplyRemoteChangeset(ops); err != nil {
				blocklog.Error().Err(err).Msg("collab: applying remote changeset failed")
			}
		})

	case MethodCursorChanged:
		var params CursorChangedParams
		if req.Params != nil {
			if err := json.Unmarshal(*req.Params, &params); err != nil {
				blocklog.Warn().Err(err).Msg("collab: malformed cursor/changed params")
				return
			}
		}
		h.hub.enqueue(func() {
			h.hub.receiver.ApplyCursorChangedEvent(params.PeerID, params.Cursor)
		})
	}
}
