package share

import "testing"

func TestParseRange(t *testing.T) {
	const size = 1000

	cases := []struct {
		header     string
		start, end int64
		length     int64
	}{
		{"bytes=100-199", 100, 199, 100},
		{"bytes=0-0", 0, 0, 1},
		{"bytes=500-", 500, 999, 500},
		{"bytes=-199", 0, 199, 200}, // open start defaults to 0
		{"bytes=0-5000", 0, 999, 1000},
		{"bytes=999-999", 999, 999, 1},
	}
	for _, c := range cases {
		rng, err := ParseRange(c.header, size)
		if err != nil {
			t.Errorf("ParseRange(%q): %v", c.header, err)
			continue
		}
		if rng.Start != c.start || rng.End != c.end || rng.Length != c.length {
			t.Errorf("ParseRange(%q) = %d-%d len %d, want %d-%d len %d",
				c.header, rng.Start, rng.End, rng.Length, c.start, c.end, c.length)
		}
	}
}

func TestParseRangeEmptyHeader(t *testing.T) {
	rng, err := ParseRange("", 1000)
	if err != nil || rng != nil {
		t.Errorf("empty header: rng=%v err=%v, want nil,nil", rng, err)
	}
}

func TestParseRangeInvalid(t *testing.T) {
	for _, header := range []string{
		"chars=0-10",
		"bytes=10",
		"bytes=abc-def",
		"bytes=200-100",
		"bytes=1000-",  // start beyond EOF
		"bytes=1000-1200",
	} {
		if _, err := ParseRange(header, 1000); err == nil {
			t.Errorf("ParseRange(%q) accepted, want error", header)
		}
	}
}
