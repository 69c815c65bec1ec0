package web

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/muurk/wifiled/internal/device"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// MaxLEDBodySize bounds the JSON body accepted by POST /led.
const MaxLEDBodySize = 128

//go:embed index.html
var indexPage []byte

// Route identifies a handler.
type Route int

const (
	RouteNotFound Route = iota
	RouteIndex
	RouteSetLED
	RouteLEDState
	RouteWatch
)

// String returns the route name used in logs.
func (r Route) String() string {
	switch r {
	case RouteNotFound:
		return "not_found"
	case RouteIndex:
		return "index"
	case RouteSetLED:
		return "set_led"
	case RouteLEDState:
		return "led_state"
	case RouteWatch:
		return "watch"
	default:
		return fmt.Sprintf("Route(%d)", int(r))
	}
}

type routeEntry struct {
	method string
	path   string
	route  Route
}

var routes = [...]routeEntry{
	{http.MethodGet, "/", RouteIndex},
	{http.MethodPost, "/led", RouteSetLED},
	{http.MethodGet, "/led", RouteLEDState},
	{http.MethodGet, "/ws", RouteWatch},
}

// Router dispatches requests by (method, path). It holds no mutable state;
// handlers receive the LED flag explicitly.
type Router struct {
	index []byte
}

// NewRouter returns a Router serving the embedded index page.
func NewRouter() *Router {
	return &Router{index: indexPage}
}

// Match returns the route for method and path. Unknown pairs, including a
// known path with another method, are RouteNotFound.
func (rt *Router) Match(method, path string) Route {
	for _, e := range routes {
		if e.method == method && e.path == path {
			return e.route
		}
	}
	return RouteNotFound
}

// Serve runs the handler for req. RouteWatch needs the connection and is
// handled by the worker; Serve answers it with 426.
func (rt *Router) Serve(req *Request, led *device.LEDFlag) Response {
	switch rt.Match(req.Method, req.Path) {
	case RouteIndex:
		return Response{Status: http.StatusOK, ContentType: ContentTypeHTML, Body: rt.index}
	case RouteSetLED:
		return setLED(req, led)
	case RouteLEDState:
		return ledState(led.Load())
	case RouteWatch:
		return Response{Status: http.StatusUpgradeRequired}
	default:
		return Response{Status: http.StatusNotFound}
	}
}

// LEDRequest is the body of POST /led.
type LEDRequest struct {
	IsOn *bool `json:"is_on"`
}

// LEDState is the body of GET /led and of watch messages.
type LEDState struct {
	IsOn bool `json:"is_on"`
}

var errMissingIsOn = errors.New("missing is_on field")

var (
	successBody = []byte(`{"success":true}`)
	ledOnBody   = []byte(`{"is_on":true}`)
	ledOffBody  = []byte(`{"is_on":false}`)
)

func setLED(req *Request, led *device.LEDFlag) Response {
	if len(req.Body) == 0 || len(req.Body) > MaxLEDBodySize {
		logging.Debug("Rejected LED request body", zap.Int("body_length", len(req.Body)))
		return Response{Status: http.StatusBadRequest}
	}

	in, err := decodeLEDRequest(req.Body)
	if err != nil {
		logging.Debug("Malformed LED request", zap.Error(err))
		return Response{Status: http.StatusBadRequest}
	}

	led.Store(*in.IsOn)
	logging.Info("LED flag set", zap.Bool("is_on", *in.IsOn))
	return Response{Status: http.StatusOK, ContentType: ContentTypeJSON, Body: successBody}
}

// decodeLEDRequest matches the is_on key exactly; encoding/json would also
// accept IS_ON or Is_On.
func decodeLEDRequest(body []byte) (LEDRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return LEDRequest{}, err
	}
	raw, ok := fields["is_on"]
	if !ok {
		return LEDRequest{}, errMissingIsOn
	}
	var in LEDRequest
	if err := json.Unmarshal(raw, &in.IsOn); err != nil {
		return LEDRequest{}, err
	}
	if in.IsOn == nil {
		return LEDRequest{}, errMissingIsOn
	}
	return in, nil
}

func ledState(on bool) Response {
	body := ledOffBody
	if on {
		body = ledOnBody
	}
	return Response{Status: http.StatusOK, ContentType: ContentTypeJSON, Body: body}
}
