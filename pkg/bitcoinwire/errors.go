package bitcoinwire

import "errors"

// Wire/codec error taxonomy. Each is a distinct sentinel so
// callers can use errors.Is without parsing strings.
var (
	ErrMalformedHeader      = errors.New("bitcoinwire: malformed block header")
	ErrMalformedTransaction = errors.New("bitcoinwire: malformed transaction")
)
