package browser

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/neboloop/pilot/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Page HTML comes back inside result envelopes.
	maxMessageSize = 8 << 20

	sendBuffer = 256
)

// ErrSendBufferFull is returned when the write pump cannot keep up. The
// connection is closed when this happens.
var ErrSendBufferFull = errors.New("connection send buffer full")

// Conn is one browser extension connection.
type Conn struct {
	ID string

	ws      *websocket.Conn
	send    chan []byte
	tasks   chan string
	corr    *Correlator
	limiter *rate.Limiter
	log     logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newConn(parent context.Context, ws *websocket.Conn, id string, opts Options) *Conn {
	ctx, cancel := context.WithCancel(parent)

	queue := opts.TaskQueue
	if queue <= 0 {
		queue = 1
	}

	var limiter *rate.Limiter
	if opts.TaskRatePerMinute > 0 {
		burst := opts.TaskBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(opts.TaskRatePerMinute)/60), burst)
	}

	return &Conn{
		ID:      id,
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		tasks:   make(chan string, queue),
		corr:    NewCorrelator(),
		limiter: limiter,
		log:     logging.With("conn", id),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context is cancelled when the connection closes.
func (c *Conn) Context() context.Context { return c.ctx }

// Send queues v for the write pump as one JSON text frame.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
		// A peer that stops reading is treated as gone
		c.log.Warnf("[Relay] send buffer full, closing connection")
		c.Close()
		return ErrSendBufferFull
	}
}

// Expect registers a correlation slot for id. Call before sending the action.
func (c *Conn) Expect(id string) *Pending {
	return c.corr.Expect(id)
}

// Close tears the connection down and releases pending results.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.corr.Close()
		c.ws.Close()
	})
}

// serve runs the pumps and the task lane until the peer goes away.
func (c *Conn) serve(handle TaskFunc) {
	c.wg.Add(2)
	go c.writePump()
	go c.taskLane(handle)

	c.readPump()

	c.Close()
	c.wg.Wait()
}

// readPump reads envelopes until the socket fails. It never blocks on a
// running task, so results keep flowing while the lane waits for them.
func (c *Conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warnf("[Relay] read error: %v", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(msg)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.wg.Done()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debugf("[Relay] write failed: %v", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.ctx.Done():
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued, best effort, before the socket closes.
func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// taskLane runs queued tasks one at a time.
func (c *Conn) taskLane(handle TaskFunc) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case task := <-c.tasks:
			handle(c.ctx, c, task)
		}
	}
}

func (c *Conn) handleMessage(msg []byte) {
	var in Inbound
	if err := json.Unmarshal(msg, &in); err != nil {
		c.log.Debugf("[Relay] bad envelope: %v", err)
		c.reply(NewError(err.Error()))
		return
	}

	switch in.Type {
	case TypePing:
		c.reply(NewPong())

	case TypeTask:
		if c.limiter != nil && !c.limiter.Allow() {
			c.log.Warnf("[Relay] task rate limited")
			c.reply(NewError("rate limited"))
			return
		}
		select {
		case c.tasks <- in.Task:
			c.log.Infof("[Relay] task queued: %q", in.Task)
		default:
			c.reply(NewError("task queue full"))
		}

	case TypeResult:
		res := Result{
			OK:    in.Error == "" && (in.OK == nil || *in.OK),
			HTML:  in.HTML,
			Error: in.Error,
		}
		c.corr.Resolve(in.ID, res)

	default:
		c.log.Debugf("[Relay] unknown message type %q", in.Type)
		c.reply(NewError("unknown message"))
	}
}

func (c *Conn) reply(v any) {
	if err := c.Send(v); err != nil && !errors.Is(err, ErrConnClosed) {
		c.log.Warnf("[Relay] reply dropped: %v", err)
	}
}
