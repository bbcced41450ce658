// Package wsclient is a client for the realtime detection channel. It keeps
// one connection open, reconnects with exponential backoff and dispatches
// inbound messages to listeners by type.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNoCredential = errors.New("wsclient: no auth token")
	ErrNotConnected = errors.New("wsclient: not connected")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return "disconnected"
}

// Listener events.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventWelcome      = "connection"
	EventProgress     = "progress"
	EventResult       = "result"
	EventPong         = "pong"
	EventError        = "error"
	EventLive         = "live"
)

// MessageConn is the part of *websocket.Conn the client uses.
type MessageConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type DialFunc func(ctx context.Context, url string) (MessageConn, error)

// Timer is what AfterFunc returns; *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Config zero values default to a 2s base delay, 5 attempts and a 30s
// keep-alive. A negative PingInterval disables the keep-alive.
type Config struct {
	URL          string
	Token        string
	BaseDelay    time.Duration
	MaxAttempts  int
	PingInterval time.Duration
	Dial         DialFunc
	AfterFunc    func(d time.Duration, f func()) Timer
}

func (c *Config) setDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.Dial == nil {
		c.Dial = dialWebsocket
	}
	if c.AfterFunc == nil {
		c.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
}

func dialWebsocket(ctx context.Context, u string) (MessageConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Listener receives the payload of one event: the "progress" object for
// progress, the "result" object for results, the timestamp for pong and the
// whole message otherwise.
type Listener func(payload json.RawMessage)

type Client struct {
	cfg Config

	mu        sync.Mutex
	state     State
	conn      MessageConn
	stopPing  chan struct{}
	attempts  int
	timer     Timer
	stopped   bool
	listeners map[string]map[int]Listener
	nextID    int

	writeMu sync.Mutex
}

func New(cfg Config) *Client {
	cfg.setDefaults()
	return &Client{cfg: cfg, listeners: make(map[string]map[int]Listener)}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts is the number of reconnects scheduled since the last successful
// connection.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// On registers fn for event and returns a function that removes it.
func (c *Client) On(event string, fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]Listener)
	}
	id := c.nextID
	c.nextID++
	c.listeners[event][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[event], id)
	}
}

func (c *Client) emit(event string, payload json.RawMessage) {
	c.mu.Lock()
	fns := make([]Listener, 0, len(c.listeners[event]))
	for _, fn := range c.listeners[event] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("wsclient: %s listener panicked: %v", event, r)
				}
			}()
			fn(payload)
		}()
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("wsclient: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the channel. Without a token it fails with ErrNoCredential
// and schedules nothing; a failed dial schedules a reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return nil
	}
	if c.cfg.Token == "" {
		c.mu.Unlock()
		log.Printf("wsclient: no auth token, not connecting")
		return ErrNoCredential
	}
	c.stopped = false
	c.state = Connecting
	c.mu.Unlock()
	return c.dial(ctx)
}

// Reconnect starts over after the client gave up, resetting the attempt
// counter.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.attempts = 0
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == Reconnecting {
		c.state = Disconnected
	}
	c.mu.Unlock()
	return c.Connect(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	u, err := c.endpoint()
	if err != nil {
		c.setState(Disconnected)
		return err
	}

	conn, err := c.cfg.Dial(ctx, u)
	if err != nil {
		log.Printf("wsclient: connect failed: %v", err)
		c.setState(Disconnected)
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if c.stopped {
		c.state = Disconnected
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	stop := make(chan struct{})
	c.conn = conn
	c.stopPing = stop
	c.state = Connected
	c.attempts = 0
	c.mu.Unlock()

	c.emit(EventConnected, nil)
	go c.readLoop(conn, stop)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(stop)
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.attempts >= c.cfg.MaxAttempts {
		log.Printf("wsclient: max reconnection attempts reached (%d)", c.cfg.MaxAttempts)
		return
	}
	c.attempts++
	delay := c.cfg.BaseDelay << (c.attempts - 1)
	log.Printf("wsclient: reconnecting in %s (%d/%d)", delay, c.attempts, c.cfg.MaxAttempts)
	c.state = Reconnecting
	c.timer = c.cfg.AfterFunc(delay, c.fireReconnect)
}

func (c *Client) fireReconnect() {
	c.mu.Lock()
	if c.stopped || c.state != Reconnecting {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	c.timer = nil
	c.mu.Unlock()
	c.dial(context.Background())
}

func (c *Client) readLoop(conn MessageConn, stop chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(data)
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	close(stop)
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()
	conn.Close()

	c.emit(EventDisconnected, nil)
	c.scheduleReconnect()
}

func (c *Client) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Send(map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

type envelope struct {
	Type      string          `json:"type"`
	Progress  json.RawMessage `json:"progress"`
	Result    json.RawMessage `json:"result"`
	Timestamp json.RawMessage `json:"timestamp"`
}

func (c *Client) dispatch(data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("wsclient: invalid message: %v", err)
		return
	}
	switch msg.Type {
	case "detection_progress":
		c.emit(EventProgress, msg.Progress)
	case "detection_result":
		c.emit(EventResult, msg.Result)
	case "pong":
		c.emit(EventPong, msg.Timestamp)
	case "error":
		c.emit(EventError, data)
	case "connection":
		c.emit(EventWelcome, data)
	case "detection_live":
		c.emit(EventLive, data)
	default:
		log.Printf("wsclient: unknown message type %q", msg.Type)
	}
}

// Send writes v as one JSON text frame.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close disconnects and stops any pending reconnect.
func (c *Client) Close() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.state = Disconnected
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
