// Package netstack binds an IPv4 address to a live transport and publishes
// the resulting Handle.
//
// Bind is the readiness gate between the wifi manager and the HTTP workers.
// With static addressing it returns immediately; with DHCP it polls the
// client every PollInterval until a lease exists, without an upper bound.
//
// A Handle is immutable once returned. Workers share it by pointer and do
// their I/O on the per-connection sockets it hands out.
package netstack
