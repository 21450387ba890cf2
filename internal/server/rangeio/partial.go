// Package rangeio serves byte ranges of stored files: parsing Range headers,
// turning them into bounded regions, and adapting a backend stream that
// already starts at the region offset to callers that skip to it first.
package rangeio

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/filestore/internal/common"
)

// PartialReader wraps a stream whose first byte is at offset start of the
// logical file. Callers written against the whole file skip to start before
// reading; until they have, every read fails. The skipped prefix is not
// fetched from the backend.
type PartialReader struct {
	r       io.ReadCloser
	pending int64
}

func NewPartialReader(r io.ReadCloser, start int64) *PartialReader {
	return &PartialReader{r: r, pending: max(start, 0)}
}

func (p *PartialReader) check() error {
	if p.pending > 0 {
		return fmt.Errorf("%w: %d bytes must be skipped before reading", common.ErrorStreamProtocolViolation, p.pending)
	}
	return nil
}

// Skip consumes the outstanding prefix first and then discards bytes of the
// underlying stream. It returns the number of bytes skipped.
func (p *PartialReader) Skip(n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	k := min(n, p.pending)
	p.pending -= k
	if rest := n - k; rest > 0 {
		m, err := io.CopyN(io.Discard, p.r, rest)
		if err == io.EOF {
			err = nil
		}
		return k + m, err
	}
	return k, nil
}

func (p *PartialReader) Read(b []byte) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.r.Read(b)
}

func (p *PartialReader) WriteTo(w io.Writer) (int64, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return io.Copy(w, p.r)
}

func (p *PartialReader) ReadAll() ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return io.ReadAll(p.r)
}

// Seek is not supported; the stream cannot be rewound.
func (p *PartialReader) Seek(int64, int) (int64, error) {
	return 0, fmt.Errorf("%w: partial stream cannot seek", common.ErrorStreamProtocolViolation)
}

func (p *PartialReader) Close() error {
	return p.r.Close()
}

var _ io.ReadSeekCloser = (*PartialReader)(nil)
