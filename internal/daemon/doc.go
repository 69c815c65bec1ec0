// Package daemon wires the wifiled components together and runs them.
//
// Startup order:
//
//  1. Validate the configuration. A *config.Error stops the daemon here.
//  2. Start the connectivity manager and wait for the link to come up.
//  3. Bind IPv4 (static or DHCP) on the link.
//  4. Listen on the HTTP port, advertise over mDNS and start the LED driver.
//  5. Serve HTTP with the worker pool until the context is cancelled.
//
// The connectivity manager keeps running after startup and reconnects on
// link loss without stopping the HTTP workers.
package daemon
