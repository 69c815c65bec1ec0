// Package client talks to a running wifiled daemon over HTTP.
//
// It wraps the daemon's small API:
//
//	GET  /led   current LED state as {"is_on": bool}
//	POST /led   set the LED with {"is_on": bool}
//	GET  /ws    WebSocket stream of LED state changes
//
// Reads are retried with exponential backoff on network failures and 5xx
// responses. Writes are sent once; setting the LED is idempotent but the
// caller decides whether to repeat it.
//
// Errors are returned as *Error with an ErrorType so callers can present
// short messages:
//
//	on, err := c.GetLED(ctx)
//	if err != nil {
//		fmt.Println(client.ShortMessage(err))
//	}
package client
