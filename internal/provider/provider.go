// Package provider abstracts the image-processing backend. The coordinator
// treats any error from Process as a domain failure: the job goes terminal
// FAILED with the error text preserved, and is never retried.
package provider

import (
	"context"

	"github.com/google/uuid"
)

// Request carries everything the provider needs for one job. OnIntake, when
// non-nil, is called once as soon as the provider has accepted the input; the
// coordinator uses it to advance the job into its editing phase. Providers
// without an intermediate phase may never call it.
type Request struct {
	JobID         uuid.UUID
	InputLocation string
	Prompt        string
	OnIntake      func()
}

// Provider processes one input image and returns the output locator.
type Provider interface {
	Process(ctx context.Context, req Request) (outputLocation string, err error)
}
