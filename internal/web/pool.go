package web

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/wifiled/internal/device"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

const (
	DefaultPoolSize        = 2
	DefaultPort            = 80
	DefaultRxBufferSize    = 1024
	DefaultTxBufferSize    = 1024
	DefaultParseBufferSize = 2048
	DefaultMaxWatchers     = 4
	DefaultWatchInterval   = 50 * time.Millisecond
)

// Timeouts are enforced per connection. Zero means unbounded.
type Timeouts struct {
	// StartReadRequest bounds the wait for the first byte of a request,
	// after accept or after the previous response.
	StartReadRequest time.Duration
	// ReadRequest bounds reading the rest of the request.
	ReadRequest time.Duration
	// Write bounds flushing one response.
	Write time.Duration
}

// DefaultTimeouts returns 5s / 1s / 1s.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		StartReadRequest: 5 * time.Second,
		ReadRequest:      1 * time.Second,
		Write:            1 * time.Second,
	}
}

// Listener is the bound network stack the pool listens on.
type Listener interface {
	Listen(ctx context.Context, port uint16) (net.Listener, error)
}

// Pool is a fixed set of HTTP workers sharing one listener. Each worker
// serves one connection at a time with buffers it allocates once.
type Pool struct {
	Size     int
	Port     uint16
	Timeouts Timeouts

	RxBufferSize    int
	TxBufferSize    int
	ParseBufferSize int

	// MaxWatchers bounds concurrent GET /ws streams. Streams do not occupy
	// a worker.
	MaxWatchers   int
	WatchInterval time.Duration
}

// NewPool returns a pool with default buffer sizes.
func NewPool(size int, port uint16, timeouts Timeouts) *Pool {
	return &Pool{Size: size, Port: port, Timeouts: timeouts}
}

func (p Pool) withDefaults() Pool {
	if p.Size <= 0 {
		p.Size = DefaultPoolSize
	}
	if p.RxBufferSize <= 0 {
		p.RxBufferSize = DefaultRxBufferSize
	}
	if p.TxBufferSize <= 0 {
		p.TxBufferSize = DefaultTxBufferSize
	}
	if p.ParseBufferSize <= 0 {
		p.ParseBufferSize = DefaultParseBufferSize
	}
	if p.MaxWatchers <= 0 {
		p.MaxWatchers = DefaultMaxWatchers
	}
	if p.WatchInterval <= 0 {
		p.WatchInterval = DefaultWatchInterval
	}
	return p
}

// Serve listens on p.Port of stack and runs the workers until ctx is cancelled.
func (p *Pool) Serve(ctx context.Context, stack Listener, router *Router, led *device.LEDFlag) error {
	ln, err := stack.Listen(ctx, p.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", p.Port, err)
	}
	return p.ServeListener(ctx, ln, router, led)
}

// ServeListener runs the workers on an existing listener until ctx is
// cancelled or the listener is closed. It closes ln before returning.
func (p *Pool) ServeListener(ctx context.Context, ln net.Listener, router *Router, led *device.LEDFlag) error {
	cfg := p.withDefaults()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	logging.Info("HTTP worker pool listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", cfg.Size),
		zap.Duration("start_read_request", cfg.Timeouts.StartReadRequest),
		zap.Duration("read_request", cfg.Timeouts.ReadRequest),
		zap.Duration("write", cfg.Timeouts.Write),
	)

	watch := newWatchers(led, cfg.MaxWatchers, cfg.WatchInterval, cfg.Timeouts.Write)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Size; i++ {
		w := newWorker(i, &cfg, router, led, watch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, ln)
		}()
	}
	wg.Wait()
	_ = ln.Close()
	watch.wait()

	logging.Info("HTTP worker pool stopped")
	return ctx.Err()
}

// worker owns its buffers for its whole life.
type worker struct {
	id     int
	cfg    *Pool
	router *Router
	led    *device.LEDFlag
	watch  *watchers

	br    *bufio.Reader
	bw    *bufio.Writer
	parse []byte
	req   Request
}

func newWorker(id int, cfg *Pool, router *Router, led *device.LEDFlag, watch *watchers) *worker {
	return &worker{
		id:     id,
		cfg:    cfg,
		router: router,
		led:    led,
		watch:  watch,
		br:     bufio.NewReaderSize(nil, cfg.RxBufferSize),
		bw:     bufio.NewWriterSize(nil, cfg.TxBufferSize),
		parse:  make([]byte, cfg.ParseBufferSize),
	}
}

func (w *worker) run(ctx context.Context, ln net.Listener) {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			delay = acceptBackoff(delay)
			logging.Error("Failed to accept connection",
				zap.Int("worker", w.id),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		w.serve(ctx, conn)
	}
}

// acceptBackoff doubles the delay after a failed Accept, from 5ms up to 1s.
func acceptBackoff(prev time.Duration) time.Duration {
	const (
		minDelay = 5 * time.Millisecond
		maxDelay = time.Second
	)
	if prev < minDelay {
		return minDelay
	}
	if next := prev * 2; next < maxDelay {
		return next
	}
	return maxDelay
}

// serve runs the keep-alive loop for one connection.
func (w *worker) serve(ctx context.Context, conn net.Conn) {
	connID := uuid.NewString()
	remoteAddr := conn.RemoteAddr().String()
	logging.LogConnection(w.id, connID, remoteAddr, "connection_accepted")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	hijacked := false
	defer func() {
		stop()
		w.br.Reset(nil)
		w.bw.Reset(nil)
		if !hijacked {
			_ = conn.Close()
			logging.LogConnection(w.id, connID, remoteAddr, "connection_closed")
		}
	}()

	w.br.Reset(conn)
	w.bw.Reset(conn)
	t := w.cfg.Timeouts

	for {
		if err := conn.SetReadDeadline(deadline(t.StartReadRequest)); err != nil {
			return
		}
		if _, err := w.br.Peek(1); err != nil {
			w.logConnError(connID, ClassifyConnError(err, PhaseStartRead))
			return
		}

		if err := conn.SetReadDeadline(deadline(t.ReadRequest)); err != nil {
			return
		}
		if err := readRequest(w.br, w.parse, &w.req); err != nil {
			cerr := ClassifyConnError(err, PhaseRead)
			w.logConnError(connID, cerr)
			if cerr.Type == ErrTypeParse {
				if raw, _ := w.br.Peek(w.br.Buffered()); len(raw) > 0 {
					logging.LogRawBytes("unparsed request bytes", raw)
				}
				_ = w.reply(conn, connID, Response{Status: cerr.Status, Close: true}, false)
			}
			return
		}
		logging.LogHTTPRequest(connID, w.req.Method, w.req.Path, len(w.req.Body))

		if w.router.Match(w.req.Method, w.req.Path) == RouteWatch && isUpgrade(&w.req) {
			ok, resp := w.watch.upgrade(ctx, conn, bufio.NewReadWriter(w.br, w.bw), &w.req, connID)
			if ok {
				hijacked = true
				return
			}
			if resp != nil {
				_ = w.reply(conn, connID, *resp, false)
			}
			return
		}

		resp := w.router.Serve(&w.req, w.led)
		keepAlive := w.req.KeepAlive && !resp.Close
		if err := w.reply(conn, connID, resp, keepAlive); err != nil {
			w.logConnError(connID, ClassifyConnError(err, PhaseWrite))
			return
		}
		if !keepAlive {
			return
		}
	}
}

func (w *worker) reply(conn net.Conn, connID string, resp Response, keepAlive bool) error {
	if err := conn.SetWriteDeadline(deadline(w.cfg.Timeouts.Write)); err != nil {
		return err
	}
	if err := writeResponse(w.bw, resp, keepAlive); err != nil {
		return err
	}
	logging.LogHTTPResponse(connID, resp.Status, resp.ContentType, len(resp.Body))
	return nil
}

func (w *worker) logConnError(connID string, cerr *ConnError) {
	fields := []zap.Field{
		zap.Int("worker", w.id),
		zap.String("conn_id", connID),
		zap.String("phase", cerr.Phase),
		zap.Error(cerr.Err),
	}
	switch cerr.Type {
	case ErrTypeClosed:
		logging.Debug("Connection closed by peer", fields...)
	case ErrTypeTimeout:
		logging.Info("Connection timed out", fields...)
	case ErrTypeParse:
		logging.Warn("Malformed request", append(fields, zap.Int("status", cerr.Status))...)
	default:
		logging.Warn("Connection error", append(fields, zap.Stringer("type", cerr.Type))...)
	}
}

// deadline converts a timeout into a deadline; zero means none.
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
