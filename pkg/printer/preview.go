package printer

import (
	"context"
	"sync"
)

const defaultPreviewKeep = 16

// Preview is an in-memory Printer. Jobs are kept in arrival order, newest
// last, bounded to the configured count. The terminal UI polls the latest
// job and renders it in place of paper.
type Preview struct {
	mu   sync.Mutex
	jobs [][]byte
	keep int
}

// NewPreview creates a Preview retaining up to keep jobs. Non-positive
// keeps fall back to a small default.
func NewPreview(keep int) *Preview {
	if keep <= 0 {
		keep = defaultPreviewKeep
	}
	return &Preview{keep: keep}
}

func (p *Preview) Print(_ context.Context, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs = append(p.jobs, cp)
	if len(p.jobs) > p.keep {
		p.jobs = p.jobs[len(p.jobs)-p.keep:]
	}
	return nil
}

// Last returns the most recent job, or nil if none were printed.
func (p *Preview) Last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.jobs) == 0 {
		return nil
	}
	return p.jobs[len(p.jobs)-1]
}

// Len reports how many jobs are retained.
func (p *Preview) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

func (p *Preview) IsConnected() bool { return true }

func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = nil
	return nil
}
