package web

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

const (
	// MaxPathLength bounds the request target, query included.
	MaxPathLength = 256
	// MaxHeaders bounds the number of header lines kept per request.
	MaxHeaders = 16
)

// Parse errors. Each maps to the status of the best-effort reply written
// before the connection is closed.
var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrUnsupportedProtocol  = errors.New("unsupported protocol version")
	ErrPathTooLong          = errors.New("request path too long")
	ErrMalformedHeader      = errors.New("malformed header line")
	ErrTooManyHeaders       = errors.New("too many header lines")
	ErrLineTooLong          = errors.New("line exceeds receive buffer")
	ErrParseBufferFull      = errors.New("parse buffer exhausted")
	ErrBadContentLength     = errors.New("invalid Content-Length")
	ErrBodyTooLarge         = errors.New("body exceeds parse buffer")
	ErrTransferEncoding     = errors.New("transfer encodings are not supported")
)

// Header is one header line. Name and Value alias the worker's parse buffer
// and are only valid until the next request is read.
type Header struct {
	Name  []byte
	Value []byte
}

// Request is a parsed HTTP/1.x request.
type Request struct {
	Method     string
	Path       string
	Query      string
	ProtoMinor int // HTTP/1.ProtoMinor

	Headers    [MaxHeaders]Header
	NumHeaders int

	// Body aliases the parse buffer.
	Body          []byte
	ContentLength int

	// KeepAlive reports whether the client allows another request on the
	// same connection.
	KeepAlive bool
}

// Header returns the value of the first header matching name, ignoring case.
func (r *Request) Header(name string) []byte {
	for i := 0; i < r.NumHeaders; i++ {
		if bytes.EqualFold(r.Headers[i].Name, []byte(name)) {
			return r.Headers[i].Value
		}
	}
	return nil
}

// requestParser reads requests into a fixed parse buffer.
type requestParser struct {
	buf []byte
	n   int
}

// readRequest reads one request from br into req. The request line, headers
// and body are copied into buf, which is never grown.
func readRequest(br *bufio.Reader, buf []byte, req *Request) error {
	*req = Request{}
	p := requestParser{buf: buf}

	line, err := p.readLine(br)
	if err != nil {
		return err
	}
	if err := parseRequestLine(line, req); err != nil {
		return err
	}

	contentLength := -1
	for {
		line, err := p.readLine(br)
		if err != nil {
			return err
		}
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 || bytes.ContainsAny(line[:colon], " \t") {
			return ErrMalformedHeader
		}
		name := line[:colon]
		value := bytes.Trim(line[colon+1:], " \t")

		switch {
		case bytes.EqualFold(name, []byte("Content-Length")):
			if len(value) == 0 || value[0] < '0' || value[0] > '9' {
				return ErrBadContentLength
			}
			n, err := strconv.Atoi(string(value))
			if err != nil || (contentLength >= 0 && n != contentLength) {
				return ErrBadContentLength
			}
			contentLength = n
		case bytes.EqualFold(name, []byte("Transfer-Encoding")):
			return ErrTransferEncoding
		case bytes.EqualFold(name, []byte("Connection")):
			applyConnectionHeader(value, req)
		}

		if req.NumHeaders == MaxHeaders {
			return ErrTooManyHeaders
		}
		req.Headers[req.NumHeaders] = Header{Name: name, Value: value}
		req.NumHeaders++
	}

	if contentLength <= 0 {
		return nil
	}
	if contentLength > len(p.buf)-p.n {
		return ErrBodyTooLarge
	}
	body := p.buf[p.n : p.n+contentLength]
	if _, err := io.ReadFull(br, body); err != nil {
		return err
	}
	p.n += contentLength
	req.Body = body
	req.ContentLength = contentLength
	return nil
}

// readLine copies the next CRLF- or LF-terminated line into the parse buffer
// and returns it without the terminator.
func (p *requestParser) readLine(br *bufio.Reader) ([]byte, error) {
	raw, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrLineTooLong
		}
		return nil, err
	}
	raw = bytes.TrimSuffix(raw[:len(raw)-1], []byte("\r"))

	if p.n+len(raw) > len(p.buf) {
		return nil, ErrParseBufferFull
	}
	line := p.buf[p.n : p.n+len(raw)]
	copy(line, raw)
	p.n += len(raw)
	return line, nil
}

func parseRequestLine(line []byte, req *Request) error {
	method, rest, ok := bytes.Cut(line, []byte(" "))
	if !ok || len(method) == 0 {
		return ErrMalformedRequestLine
	}
	target, proto, ok := bytes.Cut(rest, []byte(" "))
	if !ok || len(target) == 0 {
		return ErrMalformedRequestLine
	}
	for _, c := range method {
		if c < 'A' || c > 'Z' {
			return ErrMalformedRequestLine
		}
	}
	if len(target) > MaxPathLength {
		return ErrPathTooLong
	}
	if target[0] != '/' && !bytes.Equal(target, []byte("*")) {
		return ErrMalformedRequestLine
	}

	switch string(proto) {
	case "HTTP/1.1":
		req.ProtoMinor = 1
		req.KeepAlive = true
	case "HTTP/1.0":
		req.ProtoMinor = 0
		req.KeepAlive = false
	default:
		return ErrUnsupportedProtocol
	}

	path, query, _ := bytes.Cut(target, []byte("?"))
	req.Method = string(method)
	req.Path = string(path)
	req.Query = string(query)
	return nil
}

func applyConnectionHeader(value []byte, req *Request) {
	for _, tok := range bytes.Split(value, []byte(",")) {
		tok = bytes.TrimSpace(tok)
		switch {
		case bytes.EqualFold(tok, []byte("close")):
			req.KeepAlive = false
			return
		case bytes.EqualFold(tok, []byte("keep-alive")):
			req.KeepAlive = true
		}
	}
}

// parseErrorStatus returns the status for a best-effort reply to a request
// that could not be parsed, or 0 if err is not a parse error.
func parseErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrPathTooLong):
		return 414
	case errors.Is(err, ErrTooManyHeaders), errors.Is(err, ErrLineTooLong):
		return 431
	case errors.Is(err, ErrBodyTooLarge), errors.Is(err, ErrParseBufferFull):
		return 413
	case errors.Is(err, ErrTransferEncoding):
		return 501
	case errors.Is(err, ErrUnsupportedProtocol):
		return 505
	case errors.Is(err, ErrMalformedRequestLine), errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrBadContentLength):
		return 400
	}
	return 0
}
