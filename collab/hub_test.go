package collab

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/document"
)

type fakeReceiver struct {
	mu         sync.Mutex
	ops        [][]changeset.RecordedOp
	cursorPeer string
	cursor     document.CursorState
}

func (f *fakeReceiver) ApplyRemoteChangeset(ops []changeset.RecordedOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, ops)
	return nil
}

func (f *fakeReceiver) ApplyCursorChangedEvent(peerID string, cursor document.CursorState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorPeer = peerID
	f.cursor = cursor
}

func (f *fakeReceiver) opCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops)
}

func TestHubBroadcastRoundTripsOverPipe(t *testing.T) {
	sender := NewHub(nil)
	receiver := &fakeReceiver{}
	receiverHub := NewHub(receiver)

	a, b := net.Pipe()
	sender.AddStream("receiver", a)
	receiverHub.AddStream("sender", b)
	defer sender.Close()
	defer receiverHub.Close()

	ops := []changeset.RecordedOp{
		{Kind: changeset.OpNameTextEdit, Loc: document.NodeLocation{document.Index(1)}},
	}
	sender.Broadcast(context.Background(), 3, ops)

	require.Eventually(t, func() bool {
		receiverHub.Drain()
		return receiver.opCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubBroadcastCursorRoundTripsOverPipe(t *testing.T) {
	sender := NewHub(nil)
	receiver := &fakeReceiver{}
	receiverHub := NewHub(receiver)

	a, b := net.Pipe()
	sender.AddStream("receiver", a)
	receiverHub.AddStream("sender", b)
	defer sender.Close()
	defer receiverHub.Close()

	cursor := document.Collapsed("blk_1", 4)
	sender.BroadcastCursor(context.Background(), "peer-a", cursor)

	require.Eventually(t, func() bool {
		receiverHub.Drain()
		receiver.mu.Lock()
		defer receiver.mu.Unlock()
		return receiver.cursorPeer == "peer-a" && receiver.cursor == cursor
	}, time.Second, 5*time.Millisecond)
}

func TestHubPeerIDsTracksConnectedPeers(t *testing.T) {
	hub := NewHub(nil)
	a, b := net.Pipe()
	hub.AddStream("peer-1", a)
	defer hub.Close()
	defer b.Close()

	require.Equal(t, []string{"peer-1"}, hub.PeerIDs())
}
