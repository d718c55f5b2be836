// Package gateway maintains the WebSocket connection to the OneBot
// endpoint and correlates API responses to their requests by echo id.
//
// One reader goroutine classifies inbound frames: responses settle the
// pending call with the matching echo, events flow out on Events().
// One writer goroutine owns the connection for writes.
package gateway

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
	"github.com/nyabot/nyabot/onebot"
)

// Timeout constants per Gorilla best practices.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024 * 1024

	// eventBuffer absorbs bursts while the dispatcher drains.
	eventBuffer = 256
)

// Options configure a Router.
type Options struct {
	// URI is the ws:// endpoint.
	URI string
	// Token is appended as the access_token query parameter when set.
	Token string
	// SendRate caps outbound API calls per second; zero means unlimited.
	SendRate float64
	// DialTimeout bounds the initial handshake. Zero means 10s.
	DialTimeout time.Duration
}

type pendingCall struct {
	done chan *onebot.Response
}

// Router is the connection owner. Safe for concurrent Send calls.
type Router struct {
	log *zap.SugaredLogger

	conn    *websocket.Conn
	limiter *rate.Limiter

	// outbound serializes writes onto the single writer goroutine.
	outbound chan []byte
	events   chan *onebot.Frame

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool

	closeOnce sync.Once
	closedCh  chan struct{}
}

// Dial connects and starts the read and write pumps. The returned Router
// is live until Close or a connection failure.
func Dial(ctx context.Context, opts Options) (*Router, error) {
	u, err := url.Parse(opts.URI)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing gateway uri %q", opts.URI)
	}
	if opts.Token != "" {
		q := u.Query()
		q.Set("access_token", opts.Token)
		u.RawQuery = q.Encode()
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing gateway %s", opts.URI)
	}

	r := &Router{
		log:      logger.Named("gateway"),
		conn:     conn,
		outbound: make(chan []byte, 64),
		events:   make(chan *onebot.Frame, eventBuffer),
		pending:  make(map[string]*pendingCall),
		closedCh: make(chan struct{}),
	}
	if opts.SendRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), 1)
	}

	go r.readPump()
	go r.writePump()

	r.log.Infow("Connected to gateway", "uri", opts.URI)
	return r, nil
}

// Events is the stream of inbound event frames. Closed when the
// connection ends.
func (r *Router) Events() <-chan *onebot.Frame { return r.events }

// Done is closed when the connection has fully shut down.
func (r *Router) Done() <-chan struct{} { return r.closedCh }

// Send performs one correlated API call: a fresh uuid echo is attached,
// the frame is written, and the call blocks until the response with that
// echo arrives, the timeout lapses, or ctx is cancelled. A late response
// after timeout is dropped on arrival.
func (r *Router) Send(ctx context.Context, action string, params interface{}, timeout time.Duration) (*onebot.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, errors.ErrCancelled
		}
	}

	echo := uuid.NewString()
	data, err := onebot.EncodeRequest(action, params, echo)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s request", action)
	}

	call := &pendingCall{done: make(chan *onebot.Response, 1)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.ErrConnectionClosed
	}
	r.pending[echo] = call
	r.mu.Unlock()

	select {
	case r.outbound <- data:
	case <-r.closedCh:
		r.forget(echo)
		return nil, errors.ErrConnectionClosed
	case <-ctx.Done():
		r.forget(echo)
		return nil, errors.ErrCancelled
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-call.done:
		if resp == nil {
			return nil, errors.ErrConnectionClosed
		}
		return resp, nil
	case <-timer.C:
		r.forget(echo)
		r.log.Warnw("API call timed out", "action", action, "echo", echo, "timeout", timeout)
		return nil, errors.ErrTimeout
	case <-ctx.Done():
		r.forget(echo)
		return nil, errors.ErrCancelled
	case <-r.closedCh:
		return nil, errors.ErrConnectionClosed
	}
}

// forget removes a pending call so its eventual response is dropped.
func (r *Router) forget(echo string) {
	r.mu.Lock()
	delete(r.pending, echo)
	r.mu.Unlock()
}

// Close tears the connection down. Every in-flight call fails with
// ErrConnectionClosed. Safe to call more than once.
func (r *Router) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		pending := r.pending
		r.pending = make(map[string]*pendingCall)
		r.mu.Unlock()

		close(r.closedCh)
		r.conn.Close()

		for _, call := range pending {
			call.done <- nil
		}
		r.log.Infow("Gateway connection closed")
	})
	return nil
}

func (r *Router) readPump() {
	// The reader is the only sender on events, so it owns the close.
	defer func() {
		r.Close()
		close(r.events)
	}()

	r.conn.SetReadLimit(maxMessageSize)
	r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		r.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			r.handleReadError(err)
			return
		}
		// Inbound traffic counts as liveness too.
		r.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := onebot.DecodeFrame(data)
		if err != nil {
			r.log.Warnw("Dropping malformed frame", "error", err.Error(), "size_bytes", len(data))
			continue
		}

		if frame.Response != nil {
			r.settle(frame.Response)
			continue
		}

		select {
		case r.events <- frame:
		case <-r.closedCh:
			return
		}
	}
}

// settle delivers a response to its pending call; responses with no
// matching echo (timed out or cancelled calls) are dropped.
func (r *Router) settle(resp *onebot.Response) {
	r.mu.Lock()
	call, ok := r.pending[resp.Echo]
	if ok {
		delete(r.pending, resp.Echo)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Debugw("Dropping late response", "echo", resp.Echo)
		return
	}
	call.done <- resp
}

func (r *Router) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseNormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		r.log.Warnw("WebSocket read error", "error", err.Error())
	}
}

func (r *Router) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		r.Close()
	}()

	for {
		select {
		case <-r.closedCh:
			return
		case data := <-r.outbound:
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				r.log.Warnw("WebSocket write error", "error", err.Error())
				return
			}
		case <-ticker.C:
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
