package web

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wifiled/internal/device"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffers owned by each upgraded connection. Non-zero so the handshake
	// never keeps the worker's reusable buffers.
	wsBufferSize = 256
)

// watchers streams LED state changes over WebSocket connections. The number
// of concurrent streams is bounded.
type watchers struct {
	led          *device.LEDFlag
	interval     time.Duration
	writeTimeout time.Duration
	slots        chan struct{}
	upgrader     websocket.Upgrader
	wg           sync.WaitGroup
}

func newWatchers(led *device.LEDFlag, max int, interval, writeTimeout time.Duration) *watchers {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &watchers{
		led:          led,
		interval:     interval,
		writeTimeout: writeTimeout,
		slots:        make(chan struct{}, max),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeTimeout,
			ReadBufferSize:   wsBufferSize,
			WriteBufferSize:  wsBufferSize,
		},
	}
}

func (w *watchers) tryAcquire() bool {
	select {
	case w.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (w *watchers) release() {
	<-w.slots
}

// wait blocks until every stream has ended.
func (w *watchers) wait() {
	w.wg.Wait()
}

// upgrade performs the WebSocket handshake for req on conn. On success the
// connection belongs to a new stream goroutine and true is returned. On
// failure resp holds the reply to send if the connection was not hijacked.
func (w *watchers) upgrade(ctx context.Context, conn net.Conn, brw *bufio.ReadWriter, req *Request, connID string) (bool, *Response) {
	if !w.tryAcquire() {
		logging.Warn("Too many watchers, rejecting upgrade", zap.String("conn_id", connID))
		return false, &Response{Status: http.StatusServiceUnavailable, Close: true}
	}

	// Worker deadlines must not leak into the long-lived stream.
	_ = conn.SetDeadline(time.Time{})

	hw := &hijackWriter{conn: conn, brw: brw, header: make(http.Header)}
	ws, err := w.upgrader.Upgrade(hw, req.httpRequest(conn.RemoteAddr().String()), nil)
	if err != nil {
		w.release()
		logging.Info("WebSocket upgrade failed",
			zap.String("conn_id", connID),
			zap.Error(ClassifyConnError(err, PhaseUpgrade)),
		)
		if hw.hijacked {
			return false, nil
		}
		status := hw.status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return false, &Response{Status: status, ContentType: ContentTypeText, Body: hw.body.Bytes(), Close: true}
	}

	logging.Info("WebSocket watcher connected", zap.String("conn_id", connID))
	w.wg.Add(1)
	go w.stream(ctx, ws, connID)
	return true, nil
}

// stream sends the current LED state, then every change, until the peer
// goes away or ctx is cancelled.
func (w *watchers) stream(ctx context.Context, ws *websocket.Conn, connID string) {
	defer w.wg.Done()
	defer w.release()
	defer func() {
		_ = ws.Close()
		logging.Info("WebSocket watcher closed", zap.String("conn_id", connID))
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Control frames are processed by the reader; data frames are ignored.
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(w.interval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	last := w.led.Load()
	if err := w.send(ws, last); err != nil {
		logging.Debug("WebSocket write failed", zap.String("conn_id", connID), zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeTimeout))
			return
		case <-peerGone:
			return
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout)); err != nil {
				logging.Debug("WebSocket ping failed", zap.String("conn_id", connID), zap.Error(err))
				return
			}
		case <-poll.C:
			on := w.led.Load()
			if on == last {
				continue
			}
			if err := w.send(ws, on); err != nil {
				logging.Debug("WebSocket write failed", zap.String("conn_id", connID), zap.Error(err))
				return
			}
			last = on
		}
	}
}

func (w *watchers) send(ws *websocket.Conn, on bool) error {
	if err := ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(LEDState{IsOn: on})
}

// isUpgrade reports whether req asks for a WebSocket upgrade.
func isUpgrade(req *Request) bool {
	return bytes.EqualFold(req.Header("Upgrade"), []byte("websocket"))
}

// httpRequest converts a parsed request into the form the upgrader expects.
func (r *Request) httpRequest(remoteAddr string) *http.Request {
	h := make(http.Header, r.NumHeaders)
	for i := 0; i < r.NumHeaders; i++ {
		h.Add(string(r.Headers[i].Name), string(r.Headers[i].Value))
	}
	return &http.Request{
		Method:     r.Method,
		URL:        &url.URL{Path: r.Path, RawQuery: r.Query},
		Proto:      "HTTP/1." + string(rune('0'+r.ProtoMinor)),
		ProtoMajor: 1,
		ProtoMinor: r.ProtoMinor,
		Header:     h,
		Host:       h.Get("Host"),
		RemoteAddr: remoteAddr,
		Body:       http.NoBody,
	}
}

// hijackWriter is the http.ResponseWriter handed to the upgrader. Hijack
// returns the worker's connection; anything written before that is kept so
// the worker can send it as a normal response.
type hijackWriter struct {
	conn     net.Conn
	brw      *bufio.ReadWriter
	header   http.Header
	status   int
	body     bytes.Buffer
	hijacked bool
}

func (h *hijackWriter) Header() http.Header {
	return h.header
}

func (h *hijackWriter) WriteHeader(status int) {
	if h.status == 0 {
		h.status = status
	}
}

func (h *hijackWriter) Write(p []byte) (int, error) {
	if h.hijacked {
		return 0, http.ErrHijacked
	}
	h.WriteHeader(http.StatusOK)
	return h.body.Write(p)
}

func (h *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h.hijacked {
		return nil, nil, http.ErrHijacked
	}
	h.hijacked = true
	return h.conn, h.brw, nil
}
