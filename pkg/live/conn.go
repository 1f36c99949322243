package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/memval/pkg/binding"
	"github.com/vango-dev/memval/pkg/exprupdate"
	"github.com/vango-dev/memval/pkg/memval"
)

// maxPendingReplies bounds queued error replies; extra replies are dropped.
const maxPendingReplies = 16

// conn streams one observable to one WebSocket client.
// The read loop applies client ops; the write loop is the only writer.
type conn struct {
	id     string
	name   string
	obs    memval.Observable[any]
	ws     *websocket.Conn
	config *Config
	logger *slog.Logger

	// latest holds the most recent unsent state; older ones are overwritten.
	mu      sync.Mutex
	latest  *State
	notify  chan struct{}
	replies chan ErrorReply
	done    chan struct{}
}

func newConn(s *Server, ws *websocket.Conn, name string, obs memval.Observable[any]) *conn {
	id := uuid.NewString()
	return &conn{
		id:      id,
		name:    name,
		obs:     obs,
		ws:      ws,
		config:  s.config,
		logger:  s.logger.With("conn", id, "name", name),
		notify:  make(chan struct{}, 1),
		replies: make(chan ErrorReply, maxPendingReplies),
		done:    make(chan struct{}),
	}
}

// serve blocks until the client disconnects.
func (c *conn) serve() {
	c.logger.Info("stream opened")

	stop := binding.For(c.obs).Observe(c.push)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.readLoop()

	stop()
	close(c.done)
	wg.Wait()
	c.ws.Close()

	c.logger.Info("stream closed")
}

// push records snap as the latest state. It never blocks.
func (c *conn) push(snap memval.Snapshot[any]) {
	state := newState(c.name, snap)

	c.mu.Lock()
	c.latest = &state
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *conn) take() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.latest
	c.latest = nil
	return state
}

func (c *conn) reply(r ErrorReply) {
	select {
	case c.replies <- r:
	default:
		c.logger.Warn("reply dropped", "op", r.Op, "error", r.Error)
	}
}

func (c *conn) readLoop() {
	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var op Op
		if err := json.Unmarshal(msg, &op); err != nil {
			c.reply(ErrorReply{Error: "invalid message: " + err.Error()})
			continue
		}
		if err := c.apply(op); err != nil {
			c.reply(ErrorReply{Op: op.Op, Error: err.Error()})
		}
	}
}

// apply runs a client op. The resulting state reaches the client through
// the subscription like any other emission.
func (c *conn) apply(op Op) error {
	switch op.Op {
	case OpSet:
		c.obs.Emit(literal(op.Value))
	case OpDelete:
		c.obs.Emit(memval.Absent[any]())
	case OpEval:
		if _, err := exprupdate.Run(c.obs, op.Expr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return

		case <-c.notify:
			if state := c.take(); state != nil {
				if !c.write(state) {
					return
				}
			}

		case r := <-c.replies:
			if !c.write(r) {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

func (c *conn) write(v any) bool {
	c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.ws.WriteJSON(v); err != nil {
		c.fail(err)
		return false
	}
	return true
}

// fail closes the socket so the read loop returns.
func (c *conn) fail(err error) {
	c.logger.Warn("write error", "error", err)
	c.ws.Close()
}
