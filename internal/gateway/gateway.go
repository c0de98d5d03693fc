// Package gateway adapts the external payment provider's intent API to the
// booking service. The provider is the source of truth for payment state;
// everything cached here is advisory only.
package gateway

import (
	"context"
	"errors"
)

// IntentStatus values reported by the provider.
const (
	StatusSucceeded  = "succeeded"
	StatusProcessing = "processing"
	StatusPending    = "pending"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// ErrIntentNotFound indicates the provider has no intent under the given ref.
var ErrIntentNotFound = errors.New("payment intent not found")

// Intent is the provider's view of a payment attempt. AmountCents and
// Currency are echoed back so callers can cross-check against the booking
// before honoring a succeeded status.
type Intent struct {
	Ref         string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Settled reports whether the intent reached a state the provider will not
// move past. succeeded, failed and canceled are settled; pending and
// processing are not.
func (i *Intent) Settled() bool {
	switch i.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Gateway queries payment intent state from the provider.
type Gateway interface {
	IntentStatus(ctx context.Context, ref string) (*Intent, error)
}
