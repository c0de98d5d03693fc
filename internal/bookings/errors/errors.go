package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrSlotTaken = errors.New("slot already held or booked")

	ErrStaleTransition = errors.New("booking changed concurrently, transition not applied")

	ErrDuplicateEvent = errors.New("payment event already processed")
)
