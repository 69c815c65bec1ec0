// Package device holds the shared LED flag and the consumer that mirrors it
// onto a physical indicator.
//
// The flag is the only process-wide mutable state. HTTP handlers write it,
// the Driver polls it at its own cadence and calls the Indicator only when
// the observed value changes. There is no notification path between the two.
package device
