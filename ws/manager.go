package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"grocery-sync/auth"
	"grocery-sync/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a frame to the peer.
	WriteWait = 10 * time.Second
	// Time allowed to read the next pong from the peer.
	PongWait = 60 * time.Second
	// Pings are sent with this period; must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10
	// Maximum inbound frame size.
	MaxMessageSize = 4096

	defaultQueueSize = 64
)

var ErrUnauthorized = errors.New("unauthorized")

// Transport is the write side of a realtime connection. *websocket.Conn
// satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// TokenVerifier decodes the identity from a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

type State int32

const (
	StatePending State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLive:
		return "live"
	default:
		return "closed"
	}
}

// Conn is one live realtime session. Handles are never reused once closed.
type Conn struct {
	ID       string
	Identity auth.Identity

	transport Transport
	send      chan []byte
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once
}

func (c *Conn) State() State { return State(c.state.Load()) }

// enqueue queues frame for the writer. It never blocks; a full queue or a
// closed connection drops the frame.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	if d, ok := c.transport.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = d.SetWriteDeadline(time.Now().Add(WriteWait))
	}
	return c.transport.WriteMessage(messageType, data)
}

// Manager keeps track of the live set of authenticated connections and fans
// events out to them.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Conn // conn id -> conn

	verifier   TokenVerifier
	backplane  Backplane
	subscribed atomic.Bool
	nodeID     string
	queueSize  int
	pingPeriod time.Duration
}

type Option func(*Manager)

// WithBackplane routes every fan-out through b so that peers connected to
// other server instances receive it too.
func WithBackplane(b Backplane) Option {
	return func(m *Manager) { m.backplane = b }
}

// WithQueueSize sets the per-connection outbound queue length.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithPingPeriod overrides the keepalive ping interval.
func WithPingPeriod(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pingPeriod = d
		}
	}
}

func NewManager(verifier TokenVerifier, opts ...Option) *Manager {
	m := &Manager{
		connections: make(map[string]*Conn),
		verifier:    verifier,
		nodeID:      uuid.New().String(),
		queueSize:   defaultQueueSize,
		pingPeriod:  PingPeriod,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect verifies token and admits transport to the live set. A connection
// whose token does not verify never becomes live and leaves no record.
func (m *Manager) Connect(t Transport, token string) (*Conn, error) {
	c := &Conn{
		ID:        uuid.New().String(),
		transport: t,
		send:      make(chan []byte, m.queueSize),
		done:      make(chan struct{}),
	}

	identity, err := m.verifier.Verify(token)
	if err != nil {
		c.state.Store(int32(StateClosed))
		metrics.ConnectionRejected()
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	c.Identity = *identity
	c.state.Store(int32(StateLive))

	m.mu.Lock()
	m.connections[c.ID] = c
	total := len(m.connections)
	m.mu.Unlock()
	metrics.SetLiveConnections(total)

	go m.writePump(c)

	log.WithFields(log.Fields{"conn": c.ID, "email": c.Identity.Email, "total": total}).
		Info("realtime connection authenticated")
	return c, nil
}

// Disconnect removes c from the live set and closes its transport. It is
// idempotent and safe to call while broadcasts are in flight.
func (m *Manager) Disconnect(c *Conn) {
	if c == nil {
		return
	}

	m.mu.Lock()
	current, ok := m.connections[c.ID]
	if ok && current == c {
		delete(m.connections, c.ID)
	}
	total := len(m.connections)
	m.mu.Unlock()

	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		_ = c.transport.Close()
	})

	if ok {
		metrics.SetLiveConnections(total)
		log.WithFields(log.Fields{"conn": c.ID, "email": c.Identity.Email, "total": total}).
			Info("realtime connection closed")
	}
}

// BroadcastAll delivers event to every live connection, including the one
// whose request triggered it. Delivery is best-effort.
func (m *Manager) BroadcastAll(event string, payload interface{}) {
	frame, err := Encode(event, payload)
	if err != nil {
		log.WithError(err).WithField("event", event).Error("failed to encode broadcast")
		return
	}
	metrics.EventSent(event, "broadcast")
	m.fanout(frame, "")
}

// RelayExcludingSender delivers event to every live connection except source.
func (m *Manager) RelayExcludingSender(source *Conn, event string, payload interface{}) {
	frame, err := Encode(event, payload)
	if err != nil {
		log.WithError(err).WithField("event", event).Error("failed to encode relay")
		return
	}
	exclude := ""
	if source != nil {
		exclude = source.ID
	}
	metrics.EventSent(event, "relay")
	m.fanout(frame, exclude)
}

// Run consumes the backplane until ctx is cancelled. Without a backplane it
// just waits for ctx. Until the subscription is confirmed, and after it ends,
// fan-outs are delivered to local connections directly.
func (m *Manager) Run(ctx context.Context) error {
	if m.backplane == nil {
		<-ctx.Done()
		return nil
	}
	defer m.subscribed.Store(false)
	err := m.backplane.Subscribe(ctx, func() {
		m.subscribed.Store(true)
	}, func(msg Message) {
		if msg.Delivered && msg.Origin == m.nodeID {
			return
		}
		m.deliver(msg.Frame, msg.Exclude)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Len returns the size of the live set.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Identities returns a copy of the identities currently connected.
func (m *Manager) Identities() []auth.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]auth.Identity, 0, len(m.connections))
	for _, c := range m.connections {
		ids = append(ids, c.Identity)
	}
	return ids
}

// Close disconnects every live connection.
func (m *Manager) Close() {
	m.mu.RLock()
	conns := make([]*Conn, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		m.Disconnect(c)
	}
}

func (m *Manager) fanout(frame []byte, exclude string) {
	if m.backplane == nil {
		m.deliver(frame, exclude)
		return
	}

	msg := Message{Origin: m.nodeID, Exclude: exclude, Frame: frame}
	if !m.subscribed.Load() {
		// Our own subscription would not hand the frame back
		m.deliver(frame, exclude)
		msg.Delivered = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), WriteWait)
	defer cancel()
	if err := m.backplane.Publish(ctx, msg); err != nil {
		log.WithError(err).Warn("backplane publish failed")
		if !msg.Delivered {
			// Peers on other nodes miss this one; local peers still get it
			m.deliver(frame, exclude)
		}
	}
}

func (m *Manager) deliver(frame []byte, exclude string) {
	m.mu.RLock()
	targets := make([]*Conn, 0, len(m.connections))
	for id, c := range m.connections {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame) {
			metrics.FrameDropped()
			log.WithField("conn", c.ID).Debug("dropped frame for slow or closed connection")
		}
	}
}

// writePump is the only goroutine writing to c's transport.
func (m *Manager) writePump(c *Conn) {
	ticker := time.NewTicker(m.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				log.WithError(err).WithField("conn", c.ID).Debug("write failed")
				m.Disconnect(c)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				m.Disconnect(c)
				return
			}
		case <-c.done:
			return
		}
	}
}
