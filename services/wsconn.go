package services

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WSConn adapts a gorilla websocket to Conn. All writes go through one
// goroutine so messages leave in the order they were enqueued.
type WSConn struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewWSConn(conn *websocket.Conn, buffer int, pingInterval time.Duration) *WSConn {
	if buffer <= 0 {
		buffer = 32
	}
	c := &WSConn{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go c.writePump(pingInterval)
	return c
}

func (c *WSConn) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		log.Printf("ws: send buffer full, dropping message")
		return false
	}
}

func (c *WSConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.conn.Close()
	})
}

func (c *WSConn) Done() <-chan struct{} { return c.done }

// ReadLoop hands every text frame to handle until the peer goes away, then
// closes the connection.
func (c *WSConn) ReadLoop(handle func([]byte)) {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error: %v", err)
			}
			return
		}
		handle(data)
	}
}

func (c *WSConn) writePump(pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws write error: %v", err)
				c.Close()
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}
