package htj2k

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; every error the package returns wraps one of them.
var (
	// ErrFormat reports a malformed chunk header or codestream
	ErrFormat = errors.New("htj2k: format error")
	// ErrUnderflow reports a read past the end of a chunk; it is also an ErrFormat
	ErrUnderflow = fmt.Errorf("%w: buffer underflow", ErrFormat)
	// ErrConsistency reports a chunk that does not agree with its part
	ErrConsistency = errors.New("htj2k: consistency error")
	// ErrCapacity reports a destination buffer that is too small
	ErrCapacity = errors.New("htj2k: capacity exceeded")
	// ErrUnsupportedInput reports a part the pipeline refuses before touching any chunk
	ErrUnsupportedInput = errors.New("htj2k: unsupported input")
	// ErrContentMismatch reports a round trip whose decoded pixels differ from the source
	ErrContentMismatch = errors.New("htj2k: content mismatch")
	// ErrClosed reports a write to a closed sink
	ErrClosed = errors.New("htj2k: sink closed")
)
