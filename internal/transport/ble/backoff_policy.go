package ble

import "time"

// advertisingMinDelay/advertisingMaxDelay bound the re-advertising backoff
// (spec.md §4.3): doubles from 1s to a cap of 32s, ±10% jitter, reset on
// connect.
const (
	advertisingMinDelay = 1 * time.Second
	advertisingMaxDelay = 32 * time.Second
)

// aggressiveBurst/conservativeBurst select the advertising burst length
// based on how far backoff has grown.
const (
	aggressiveBurst   = 30 * time.Second
	conservativeBurst = 10 * time.Second
)

// advertiseProfile reports whether advertising should currently use
// aggressive (short interval, long burst) or conservative parameters,
// based on whether the un-jittered backoff delay has grown past its
// initial value (spec.md §4.3 "Advertising backoff").
func advertiseProfile(currentDelay time.Duration) (burst time.Duration, aggressive bool) {
	if currentDelay <= advertisingMinDelay {
		return aggressiveBurst, true
	}
	return conservativeBurst, false
}
