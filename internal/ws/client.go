package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// client wraps a websocket connection with a write lock, since both the
// connection's read goroutine and bus dispatch goroutines push frames.
type client struct {
	conn    *websocket.Conn
	channel string

	writeMu sync.Mutex
	once    sync.Once
}

func newClient(conn *websocket.Conn, channel string) *client {
	return &client{conn: conn, channel: channel}
}

func (c *client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *client) Close() error {
	return c.conn.Close()
}
