package dedup

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
)

// hashingReader computes SHA-256 and SHA-512 of, and counts, every byte read
// through it. Digests are final once the consumer has read to EOF.
type hashingReader struct {
	r      io.Reader
	sha256 hash.Hash
	sha512 hash.Hash
	n      int64
}

func newHashingReader(r io.Reader) *hashingReader {
	return &hashingReader{r: r, sha256: sha256.New(), sha512: sha512.New()}
}

func (h *hashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.sha256.Write(p[:n])
		h.sha512.Write(p[:n])
		h.n += int64(n)
	}
	return n, err
}

func (h *hashingReader) SHA256() string { return hex.EncodeToString(h.sha256.Sum(nil)) }
func (h *hashingReader) SHA512() string { return hex.EncodeToString(h.sha512.Sum(nil)) }
func (h *hashingReader) Count() int64   { return h.n }
