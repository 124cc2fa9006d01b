package voucher

import (
	"bufio"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

const prefilterFPR = 0.001

// Prefilter is a bloom filter over the shop's known voucher codes. It lets
// the terminal reject mistyped codes locally instead of burning a backend
// round-trip on every typo at the counter. False positives fall through to
// the backend lookup, so a hit is never authoritative.
type Prefilter struct {
	filter *bloom.BloomFilter
}

// LoadPrefilter builds a Prefilter from a pgzip-compressed snapshot file of
// newline-separated voucher codes, as exported by the shop backend.
func LoadPrefilter(path string) (*Prefilter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open voucher snapshot")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	// Two passes would need a seekable stream; count upfront instead by
	// collecting codes, snapshots are small (thousands, not millions).
	var codes []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		codes = append(codes, strings.ToUpper(code))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan voucher snapshot")
	}

	return NewPrefilter(codes), nil
}

// NewPrefilter builds a Prefilter from already-loaded codes.
func NewPrefilter(codes []string) *Prefilter {
	n := uint(len(codes))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, prefilterFPR)
	for _, code := range codes {
		filter.AddString(strings.ToUpper(strings.TrimSpace(code)))
	}
	return &Prefilter{filter: filter}
}

// MayContain reports whether code could be a known voucher code. A false
// result is definitive; a true result must still be validated against the
// backend.
func (p *Prefilter) MayContain(code string) bool {
	if p == nil || p.filter == nil {
		return true
	}
	return p.filter.TestString(strings.ToUpper(strings.TrimSpace(code)))
}
