// Package wifi owns the radio and keeps the wireless link alive.
//
// A Manager drives a Radio through a small state machine:
//
//	Idle -> Starting -> Connecting -> Connected -> Disconnected -> Connecting ...
//
// In access-point mode there is no connect step; the manager moves to
// Connected as soon as the radio reports the AP as started.
//
// Connect failures and link loss are retried forever after a fixed delay.
// The only error that stops the manager is a configuration error from
// Radio.Configure, returned as a *config.Error.
//
// Two radios are provided:
//
//   - HostRadio delegates association to the operating system and watches a
//     host network interface for link state.
//   - SimRadio is an in-memory radio with injectable failures, used for local
//     development and tests.
package wifi
