// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"io"
	"math"
	"sync"
)

// progressReader reports upload progress as integer percentages. Values are
// non-decreasing, emitted only on change, and never after stop returns.
type progressReader struct {
	r     io.Reader
	total int64
	fn    func(int)

	mu      sync.Mutex
	sent    int64
	last    int
	stopped bool
}

func newProgressReader(r io.Reader, total int64, fn func(int)) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.advance(int64(n))
	}
	return n, err
}

func (p *progressReader) advance(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent += n
	if p.stopped || p.fn == nil || p.total <= 0 {
		return
	}
	pct := int(math.Round(float64(p.sent) * 100 / float64(p.total)))
	pct = min(max(pct, 0), 100)
	if pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// stop blocks until any in-flight callback finished and disables further ones.
func (p *progressReader) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

// bytesSent returns the number of body bytes read so far.
func (p *progressReader) bytesSent() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}
