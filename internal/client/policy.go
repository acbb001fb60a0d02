package client

import "time"

// Policy is the resilience configuration for one polling engine instance.
// It is plain data passed by value so call sites (single-job vs batch
// polling) can tune their own copies independently.
type Policy struct {
	// MaxAttempts bounds each individual network call (submit, upload, one
	// status poll), including the first try.
	MaxAttempts uint64

	// InitialBackoff and MaxBackoff shape the exponential retry curve
	// between attempts of one call.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BreakerThreshold is the number of consecutive failures that opens the
	// circuit; BreakerCooldown is how long it stays open before half-opening.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	// PollInterval is the fixed delay between status polls; MaxPolls caps the
	// number of polls so the wait always terminates: the wall-clock ceiling
	// is MaxPolls * PollInterval.
	PollInterval time.Duration
	MaxPolls     int
}

// DefaultPolicy returns the policy used when a caller has no special needs.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		PollInterval:     2 * time.Second,
		MaxPolls:         60,
	}
}
