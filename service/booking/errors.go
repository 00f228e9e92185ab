package booking

import "errors"

// Recoverable failure kinds the UI layer branches on. Everything else that
// comes out of the lifecycle operations is an unexpected storage error.
var (
	// ErrSlotUnavailable: the requested (date, time) was not free at check
	// time. The caller should re-resolve availability and re-prompt.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInvalidTransition: the requested lifecycle change is not legal from
	// the booking's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrFormatNotOffered: a group format was requested from a provider with
	// no configured group price.
	ErrFormatNotOffered = errors.New("format not offered")

	// ErrAuctionBooked: the auction behind this request already has an
	// active booking, so converting it again would double-book the winner.
	ErrAuctionBooked = errors.New("auction already has an active booking")

	ErrBookingNotFound = errors.New("booking not found")
)
