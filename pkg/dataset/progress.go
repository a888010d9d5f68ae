package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const barWidth = 50

// progress tracks per-sample timings for the progress line.
type progress struct {
	total int
	done  int
	spent time.Duration
}

func newProgress(total int) *progress {
	return &progress{total: total}
}

// step records one finished index, written or skipped.
func (p *progress) step(elapsed time.Duration) {
	p.done++
	p.spent += elapsed
}

func (p *progress) average() time.Duration {
	if p.done == 0 {
		return 0
	}
	return p.spent / time.Duration(p.done)
}

// line renders "[####----] step 3/10, avg 12ms, remaining 84ms, size 1.2 MB".
func (p *progress) line(bytes int64) string {
	filled := p.done * barWidth / p.total
	avg := p.average()
	remaining := avg * time.Duration(p.total-p.done)
	return fmt.Sprintf("[%s%s] step %d/%d, avg %s, remaining %s, size %s",
		strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled),
		p.done, p.total,
		avg.Round(time.Millisecond), remaining.Round(time.Millisecond),
		humanize.Bytes(uint64(bytes)))
}
