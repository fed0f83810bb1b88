package venue

import "errors"

// ErrCapabilityUnsupported is returned by an adapter method when the venue
// was registered without the corresponding capability (§4.1, §9).
var ErrCapabilityUnsupported = errors.New("venue: capability unsupported")

// Kind categorizes an adapter error as transient or permanent (§4.1, §7).
// Nothing in this module acts on the classification: transient errors are
// not retried, and permanent errors do not disable the pair.
type Kind int

const (
	// KindTransient covers transport failures (timeouts, requests rejected
	// by the client middleware) and 5xx responses.
	KindTransient Kind = iota
	// KindPermanent covers every 4xx response, 429 rate-limit responses
	// included, and malformed payloads.
	KindPermanent
)

// Error wraps an adapter-level failure with its retry classification.
type Error struct {
	VenueID string
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Kind == KindPermanent {
		return "venue " + e.VenueID + ": permanent: " + e.Err.Error()
	}
	return "venue " + e.VenueID + ": " + kind + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Transient builds a retryable adapter error.
func Transient(venueID string, err error) *Error {
	return &Error{VenueID: venueID, Kind: KindTransient, Err: err}
}

// Permanent builds a non-retryable adapter error.
func Permanent(venueID string, err error) *Error {
	return &Error{VenueID: venueID, Kind: KindPermanent, Err: err}
}

// IsTransient reports whether err (or a wrapped *Error within it) is
// transient. Unrecognized errors are treated as permanent.
func IsTransient(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind == KindTransient
	}
	return false
}
