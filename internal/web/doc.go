// Package web implements the embedded HTTP service: a fixed pool of workers
// sharing one listener, a bounded HTTP/1.x request parser, and a stateless
// router over the LED flag.
//
// # Workers
//
// Pool.Serve starts Size workers. Each worker allocates its receive,
// transmit and parse buffers once and then loops forever:
//
//  1. Accept one connection.
//  2. Wait up to StartReadRequest for the first byte of a request.
//  3. Read the rest of the request within ReadRequest.
//  4. Dispatch to the Router and write the response within Write.
//  5. Repeat on the same connection while keep-alive holds.
//
// Any timeout, parse error or peer close drops the connection and the worker
// goes back to Accept. A stalled client therefore holds at most one worker;
// further clients wait in the listen backlog.
//
// # Routes
//
//	GET  /     embedded HTML page
//	POST /led  {"is_on": bool} -> {"success": true}, 400 on a malformed body
//	GET  /led  {"is_on": bool}
//	GET  /ws   WebSocket stream of {"is_on": bool} on every change
//
// Everything else is 404 with an empty body. WebSocket streams are handed off
// to their own goroutines after the handshake and do not occupy a worker.
package web
