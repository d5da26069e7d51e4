package scanner

import (
	"fmt"
	"hash"
	"io"

	"github.com/y0ug/hashscan/internal/models"
)

// ComputeDigests streams r through every requested algorithm in a
// single read pass: all hash states are fed from the same buffer via
// io.MultiWriter, so the source is never re-read or rewound per
// algorithm. Digests are returned as uppercase hex, two characters per
// byte.
//
// An unsupported algorithm is rejected before any byte is read. A read
// failure aborts the whole computation; callers treat that as a
// per-file hash failure, not a run failure.
func ComputeDigests(r io.Reader, algos []models.Algorithm) (map[models.Algorithm]string, error) {
	if len(algos) == 0 {
		return nil, fmt.Errorf("no hash algorithms requested")
	}

	hashers := make(map[models.Algorithm]hash.Hash, len(algos))
	writers := make([]io.Writer, 0, len(algos))
	for _, algo := range algos {
		if _, dup := hashers[algo]; dup {
			continue
		}
		h, err := algo.Hasher()
		if err != nil {
			return nil, err
		}
		hashers[algo] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	digests := make(map[models.Algorithm]string, len(hashers))
	for algo, h := range hashers {
		digests[algo] = fmt.Sprintf("%X", h.Sum(nil))
	}
	return digests, nil
}
