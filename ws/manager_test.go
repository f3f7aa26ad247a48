package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"grocery-sync/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
	block  chan struct{}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	if messageType == websocket.TextMessage {
		f.frames = append(f.frames, append([]byte(nil), data...))
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) events() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, b := range f.frames {
		var env Envelope
		if err := json.Unmarshal(b, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeTransport) eventNames() []string {
	var names []string
	for _, e := range f.events() {
		names = append(names, e.Event)
	}
	return names
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *auth.TokenService) {
	t.Helper()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	m := NewManager(tokens, opts...)
	t.Cleanup(m.Close)
	return m, tokens
}

func connect(t *testing.T, m *Manager, tokens *auth.TokenService, userID string) (*Conn, *fakeTransport) {
	t.Helper()
	tok, err := tokens.Issue(auth.Identity{UserID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	tr := &fakeTransport{}
	c, err := m.Connect(tr, tok)
	require.NoError(t, err)
	return c, tr
}

func TestConnect_RejectsInvalidToken(t *testing.T) {
	m, _ := newTestManager(t)

	for _, tok := range []string{"", "not-a-token"} {
		tr := &fakeTransport{}
		c, err := m.Connect(tr, tok)
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	assert.Equal(t, 0, m.Len())

	other := auth.NewTokenService("other-secret", time.Hour)
	tok, err := other.Issue(auth.Identity{UserID: "mallory"})
	require.NoError(t, err)
	tr := &fakeTransport{}
	_, err = m.Connect(tr, tok)
	assert.ErrorIs(t, err, ErrUnauthorized)

	m.BroadcastAll(EventGroceryAdd, map[string]string{"name": "milk"})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tr.events(), "rejected handshake must not receive broadcasts")
	assert.Equal(t, 0, m.Len())
}

func TestConnect_AdmitsVerifiedToken(t *testing.T) {
	m, tokens := newTestManager(t)

	c, _ := connect(t, m, tokens, "alice")
	assert.Equal(t, StateLive, c.State())
	assert.Equal(t, "alice", c.Identity.UserID)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []auth.Identity{{UserID: "alice", Email: "alice@example.com"}}, m.Identities())
}

func TestBroadcastAll_ReachesEveryConnectionIncludingSender(t *testing.T) {
	m, tokens := newTestManager(t)
	_, a := connect(t, m, tokens, "alice")
	_, b := connect(t, m, tokens, "bob")

	m.BroadcastAll(EventLocationUpdate, map[string]interface{}{"userid": "alice", "latitude": 1, "longitude": 2})

	for _, tr := range []*fakeTransport{a, b} {
		require.Eventually(t, func() bool { return len(tr.events()) == 1 }, time.Second, 5*time.Millisecond)
		env := tr.events()[0]
		assert.Equal(t, EventLocationUpdate, env.Event)
		assert.JSONEq(t, `{"userid":"alice","latitude":1,"longitude":2}`, string(env.Data))
	}
}

func TestBroadcastAll_PreservesInvocationOrder(t *testing.T) {
	m, tokens := newTestManager(t)
	_, tr := connect(t, m, tokens, "alice")

	want := []string{EventGroceryAdd, EventGroceryUpdate, EventGroceryDelete}
	for _, e := range want {
		m.BroadcastAll(e, nil)
	}

	require.Eventually(t, func() bool { return len(tr.events()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, tr.eventNames())
}

func TestRelayExcludingSender(t *testing.T) {
	m, tokens := newTestManager(t)
	src, a := connect(t, m, tokens, "alice")
	_, b := connect(t, m, tokens, "bob")
	_, c := connect(t, m, tokens, "carol")

	m.RelayExcludingSender(src, EventStartLocationUpdate, json.RawMessage(`{"userid":"alice"}`))

	for _, tr := range []*fakeTransport{b, c} {
		require.Eventually(t, func() bool { return len(tr.events()) == 1 }, time.Second, 5*time.Millisecond)
		assert.JSONEq(t, `{"userid":"alice"}`, string(tr.events()[0].Data))
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, a.events())
}

func TestDisconnect(t *testing.T) {
	m, tokens := newTestManager(t)
	c, tr := connect(t, m, tokens, "alice")

	m.Disconnect(c)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, m.Len())
	assert.True(t, tr.isClosed())

	// idempotent
	m.Disconnect(c)
	m.Disconnect(nil)
	assert.Equal(t, 0, m.Len())

	m.BroadcastAll(EventGroceryAdd, nil)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tr.events())
}

func TestBroadcast_DropsWhenQueueIsFull(t *testing.T) {
	m, tokens := newTestManager(t, WithQueueSize(1))
	tok, err := tokens.Issue(auth.Identity{UserID: "slow"})
	require.NoError(t, err)

	tr := &fakeTransport{block: make(chan struct{})}
	t.Cleanup(func() { close(tr.block) })
	_, err = m.Connect(tr, tok)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			m.BroadcastAll(EventGroceryAdd, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow connection")
	}
}

func TestWriteFailureDisconnects(t *testing.T) {
	m, tokens := newTestManager(t)
	c, tr := connect(t, m, tokens, "alice")
	tr.mu.Lock()
	tr.fail = true
	tr.mu.Unlock()

	m.BroadcastAll(EventGroceryAdd, nil)

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
}

func TestConcurrentConnectDisconnectBroadcast(t *testing.T) {
	m, tokens := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tok, err := tokens.Issue(auth.Identity{UserID: fmt.Sprintf("u%d", i)})
			if err != nil {
				return
			}
			c, err := m.Connect(&fakeTransport{}, tok)
			if err != nil {
				return
			}
			m.Disconnect(c)
		}(i)
		go func(i int) {
			defer wg.Done()
			m.BroadcastAll(EventGroceryUpdate, i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, m.Len())
}

func TestRedisBackplane_FansOutAcrossNodes(t *testing.T) {
	s := miniredis.RunT(t)
	const channel = "grocery-sync:test"

	newNode := func() *Manager {
		bp, err := NewRedisBackplane("redis://"+s.Addr(), channel)
		require.NoError(t, err)
		t.Cleanup(func() { _ = bp.Close() })
		m, _ := newTestManager(t, WithBackplane(bp))
		return m
	}
	nodeA := newNode()
	nodeB := newNode()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = nodeA.Run(ctx) }()
	go func() { _ = nodeB.Run(ctx) }()
	require.Eventually(t, func() bool {
		return s.PubSubNumSub(channel)[channel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	tokens := auth.NewTokenService("test-secret", time.Hour)
	src, a := connect(t, nodeA, tokens, "alice")
	_, b := connect(t, nodeB, tokens, "bob")

	nodeA.BroadcastAll(EventGroceryAdd, map[string]string{"name": "eggs"})
	for _, tr := range []*fakeTransport{a, b} {
		require.Eventually(t, func() bool { return len(tr.events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	}

	nodeA.RelayExcludingSender(src, EventLocationUpdate, map[string]float64{"latitude": 1})
	require.Eventually(t, func() bool { return len(b.events()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, a.events(), 1)
}

func TestEncode(t *testing.T) {
	frame, err := Encode(EventGroceryDelete, map[string]bool{"success": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"grocerydelete","data":{"success":true}}`, string(frame))

	frame, err = Encode(EventStopLocationUpdate, json.RawMessage(`{"userid":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"stoplocationupdate","data":{"userid":"x"}}`, string(frame))

	frame, err = Encode(EventGroceryAdd, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"groceryadd"}`, string(frame))
}

// stubBackplane accepts publishes and never hands anything back.
type stubBackplane struct {
	mu        sync.Mutex
	published []Message
	subErr    error
}

func (b *stubBackplane) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, msg)
	return nil
}

func (b *stubBackplane) Subscribe(_ context.Context, ready func(), _ func(Message)) error {
	ready()
	return b.subErr
}

func (b *stubBackplane) Close() error { return nil }

func (b *stubBackplane) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func TestBackplane_DeliversLocallyWithoutSubscription(t *testing.T) {
	bp := &stubBackplane{}
	m, tokens := newTestManager(t, WithBackplane(bp))
	src, a := connect(t, m, tokens, "alice")
	_, b := connect(t, m, tokens, "bob")

	// Run was never started
	m.BroadcastAll(EventGroceryAdd, map[string]string{"name": "eggs"})
	m.RelayExcludingSender(src, EventStartLocationUpdate, json.RawMessage(`{"userid":"alice"}`))

	require.Eventually(t, func() bool { return len(b.events()) == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(a.events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventGroceryAdd, EventStartLocationUpdate}, b.eventNames())
	assert.Equal(t, 2, bp.count())
	for _, msg := range bp.published {
		assert.True(t, msg.Delivered)
	}
}

func TestBackplane_DeliversLocallyAfterSubscriptionFails(t *testing.T) {
	bp := &stubBackplane{subErr: errors.New("connection reset")}
	m, tokens := newTestManager(t, WithBackplane(bp))
	_, a := connect(t, m, tokens, "alice")

	err := m.Run(context.Background())
	require.Error(t, err)

	m.BroadcastAll(EventGroceryDelete, nil)
	require.Eventually(t, func() bool { return len(a.events()) == 1 }, time.Second, 5*time.Millisecond)
}
