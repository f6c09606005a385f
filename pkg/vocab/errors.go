package vocab

import "errors"

var (
	// ErrInvalidInput marks a caller contract violation: an unknown word, a
	// missing memory record, an out-of-range value or a malformed timestamp.
	ErrInvalidInput = errors.New("clozer: invalid input")

	// ErrNoSentence is returned by sentence providers that have nothing for
	// the requested word.
	ErrNoSentence = errors.New("clozer: no sentence available")
)
