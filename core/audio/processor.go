package audio

import "context"

// Decoder extracts metadata from a fully assembled audio asset. It is the
// only potentially slow collaborator in the finalization path, so callers
// must not hold per-track locks while invoking it.
type Decoder interface {
	// DecodeDuration returns the length of the audio file in seconds.
	DecodeDuration(ctx context.Context, path string) (float64, error)
}
