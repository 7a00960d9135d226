package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Fingerprint derives the cache key for a match computation. options is
// serialized with encoding/json, which sorts map keys and keeps struct field
// order, so equal option values always produce the same key.
func Fingerprint(candidateID, jobID string, options any) (string, error) {
	var opts []byte
	if options != nil {
		var err error
		opts, err = json.Marshal(options)
		if err != nil {
			return "", fmt.Errorf("serialize match options: %w", err)
		}
	}

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(candidateID)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(jobID)))
	h.Write([]byte{0})
	h.Write(opts)

	return hex.EncodeToString(h.Sum(nil)), nil
}
