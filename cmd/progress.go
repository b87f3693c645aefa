package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/pauliuspaskevicius/libARUtils/transfer"
)

// progressPrinter redraws one status line at most every interval.
type progressPrinter struct {
	out      io.Writer
	dir      transfer.Direction
	started  time.Time
	last     time.Time
	interval time.Duration
	drawn    bool
	done     int64
	total    int64
}

func newProgressPrinter(out io.Writer, dir transfer.Direction) *progressPrinter {
	now := time.Now()
	return &progressPrinter{out: out, dir: dir, started: now, interval: 100 * time.Millisecond}
}

func (p *progressPrinter) update(pr transfer.Progress) {
	p.done, p.total = pr.Downloaded, pr.DownloadTotal
	if p.dir == transfer.Upload {
		p.done, p.total = pr.Uploaded, pr.UploadTotal
	}
	if now := time.Now(); now.Sub(p.last) >= p.interval || (p.total > 0 && p.done == p.total) {
		p.last = now
		p.draw()
	}
}

func (p *progressPrinter) draw() {
	p.drawn = true
	elapsed := time.Since(p.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed / (1024 * 1024)
	}
	if p.total > 0 {
		fmt.Fprintf(p.out, "\r%d / %d bytes (%5.1f%%) %.2f MB/s ", p.done, p.total, 100*float64(p.done)/float64(p.total), rate)
		return
	}
	fmt.Fprintf(p.out, "\r%d bytes %.2f MB/s ", p.done, rate)
}

// finish ends the status line.
func (p *progressPrinter) finish() {
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}
