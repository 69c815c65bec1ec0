package client

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// Watch streams LED state changes from GET /ws. The first value is the
// current state. The returned channel is closed when ctx ends or the stream
// breaks; the error channel then carries the cause, or nothing on ctx end.
func (c *Client) Watch(ctx context.Context) (<-chan bool, <-chan error, error) {
	wsURL, err := c.watchURL()
	if err != nil {
		return nil, nil, &Error{Type: ErrTypeWebSocket, Message: "invalid device URL", Err: err}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.HTTPClient.Timeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, nil, newHTTPError(resp.StatusCode, "WebSocket upgrade rejected")
		}
		return nil, nil, classifyNetworkError("WebSocket dial failed", err)
	}
	logging.Debug("Watching device", zap.String("url", wsURL))

	states := make(chan bool, 1)
	errs := make(chan error, 1)

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	})

	go func() {
		defer close(states)
		defer stop()
		defer func() { _ = conn.Close() }()

		for {
			var state LEDState
			if err := conn.ReadJSON(&state); err != nil {
				if ctx.Err() == nil {
					errs <- &Error{Type: ErrTypeWebSocket, Message: "watch stream ended", Err: err}
				}
				return
			}
			select {
			case states <- state.IsOn:
			case <-ctx.Done():
				return
			}
		}
	}()

	return states, errs, nil
}

func (c *Client) watchURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
