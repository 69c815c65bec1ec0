package web

import (
	"bufio"
	"net/http"
	"strconv"
)

// Content types used by the router.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

const serverName = "wifiled"

// Response is a complete HTTP response. Bodies are small and fully buffered.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// Close forces the connection to close after this response.
	Close bool
}

// writeResponse serializes resp into bw and flushes it. keepAlive selects
// the Connection header.
func writeResponse(bw *bufio.Writer, resp Response, keepAlive bool) error {
	text := http.StatusText(resp.Status)
	if text == "" {
		text = "Status " + strconv.Itoa(resp.Status)
	}

	bw.WriteString("HTTP/1.1 ")
	bw.WriteString(strconv.Itoa(resp.Status))
	bw.WriteByte(' ')
	bw.WriteString(text)
	bw.WriteString("\r\nServer: ")
	bw.WriteString(serverName)
	if resp.ContentType != "" {
		bw.WriteString("\r\nContent-Type: ")
		bw.WriteString(resp.ContentType)
	}
	bw.WriteString("\r\nContent-Length: ")
	bw.WriteString(strconv.Itoa(len(resp.Body)))
	if keepAlive {
		bw.WriteString("\r\nConnection: keep-alive\r\n\r\n")
	} else {
		bw.WriteString("\r\nConnection: close\r\n\r\n")
	}
	bw.Write(resp.Body)

	return bw.Flush()
}
