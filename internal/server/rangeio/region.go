package rangeio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
)

// ByteRange is one range of a Range header. Suffix ranges ("-n") set
// Suffix and leave Start and End zero. End < 0 means open-ended ("a-").
type ByteRange struct {
	Start  int64
	End    int64
	Suffix int64
}

// Region is an inclusive span [Start, End] of a file; Count = End-Start+1.
// An empty file yields Count 0 and End -1.
type Region struct {
	Start int64
	End   int64
	Count int64
}

// ContentRange formats r for a Content-Range header.
func (r Region) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// RegionFactory bounds every region to MaxChunk bytes.
type RegionFactory struct {
	MaxChunk int64
}

func NewRegionFactory(maxChunk int64) RegionFactory {
	if maxChunk <= 0 {
		maxChunk = common.DefaultMaxChunkBytes
	}
	return RegionFactory{MaxChunk: maxChunk}
}

// Region resolves rng against a file of size bytes. A nil rng selects the
// first MaxChunk bytes.
func (f RegionFactory) Region(rng *ByteRange, size int64) (Region, error) {
	if rng == nil {
		count := min(f.MaxChunk, size)
		return Region{Start: 0, End: count - 1, Count: count}, nil
	}

	var start, end int64
	switch {
	case rng.Suffix > 0:
		start = max(size-rng.Suffix, 0)
		end = size - 1
	default:
		start = rng.Start
		end = size - 1
		if rng.End >= 0 && rng.End < end {
			end = rng.End
		}
	}
	if start < 0 || start >= size || end < start {
		return Region{}, fmt.Errorf("%w: range not satisfiable for %d bytes", common.ErrorInvalidArgument, size)
	}

	if end-start+1 > f.MaxChunk {
		end = start + f.MaxChunk - 1
	}
	return Region{Start: start, End: end, Count: end - start + 1}, nil
}

const rangeUnit = "bytes="

// ParseRange parses the first range of a Range header. An empty header
// returns nil.
func ParseRange(header string) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	if len(header) < len(rangeUnit) || !strings.EqualFold(header[:len(rangeUnit)], rangeUnit) {
		return nil, fmt.Errorf("%w: range %q does not use the bytes unit", common.ErrorInvalidArgument, header)
	}

	spec, _, _ := strings.Cut(header[len(rangeUnit):], ",")
	spec = strings.TrimSpace(spec)
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, malformed(header)
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return nil, malformed(header)
		}
		return &ByteRange{Suffix: n}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil, malformed(header)
	}
	if last == "" {
		return &ByteRange{Start: start, End: -1}, nil
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return nil, malformed(header)
	}
	return &ByteRange{Start: start, End: end}, nil
}

func malformed(header string) error {
	return fmt.Errorf("%w: malformed range %q", common.ErrorInvalidArgument, header)
}
