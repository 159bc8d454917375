package share

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidRange = errors.New("invalid range header")

// ByteRange is one resolved "bytes=start-end" span within a file.
type ByteRange struct {
	Start  int64
	End    int64 // inclusive
	Length int64
}

// ParseRange resolves a Range header against a file size. An empty header
// returns (nil, nil): the caller serves the whole file. An open start
// defaults to 0 and an open end to the last byte, so "bytes=100-" reads
// from 100 to EOF and "bytes=-199" reads the first 200 bytes. Only a
// single span is supported.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrInvalidRange
	}

	start := int64(0)
	end := size - 1
	var err error
	if startStr != "" {
		if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
			return nil, ErrInvalidRange
		}
	}
	if endStr != "" {
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return nil, ErrInvalidRange
		}
	}

	if end > size-1 {
		end = size - 1
	}
	if start < 0 || start > end || start >= size {
		return nil, ErrInvalidRange
	}
	return &ByteRange{Start: start, End: end, Length: end - start + 1}, nil
}
