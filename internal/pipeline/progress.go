package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

const barWidth = 40

// Progress counts finished files. On a terminal it redraws one bar line;
// otherwise it prints a line every tenth of the total.
type Progress struct {
	out   io.Writer
	total int64
	tty   bool

	done atomic.Int64

	mu       sync.Mutex
	lastStep int64
}

func NewProgress(out io.Writer, total int, tty bool) *Progress {
	return &Progress{out: out, total: int64(total), tty: tty}
}

func (p *Progress) Inc() {
	if p == nil {
		return
	}
	n := p.done.Add(1)
	if p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		p.drawLocked(n)
		return
	}
	step := int64(0)
	if p.total > 0 {
		step = n * 10 / p.total
	}
	if step > p.lastStep || n == p.total {
		p.lastStep = step
		fmt.Fprintf(p.out, "progress %d/%d files\n", n, p.total)
	}
}

func (p *Progress) Done() int64 {
	if p == nil {
		return 0
	}
	return p.done.Load()
}

func (p *Progress) drawLocked(n int64) {
	filled := barWidth
	if p.total > 0 {
		filled = int(n * barWidth / p.total)
	}
	filled = min(filled, barWidth)
	fmt.Fprintf(p.out, "\r[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled), n, p.total)
}

// Finish ends the bar line on a terminal.
func (p *Progress) Finish() {
	if p == nil || p.out == nil || !p.tty {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}
