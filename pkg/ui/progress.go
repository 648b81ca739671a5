package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

const (
	barWidth       = 30
	lineWidth      = 110
	renderInterval = 100 * time.Millisecond
)

type transfer struct {
	total   int64
	written int64
}

// ProgressDisplay renders a single updating line with an overall bar for
// the download phase. It is safe for concurrent use by the download workers.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	bar        progress.Model
	totalFiles int
	done       int
	failed     int
	bytes      int64
	active     map[string]*transfer
	current    string
	startTime  time.Time
	lastRender time.Time
}

// NewProgressDisplay creates a display for totalFiles downloads
func NewProgressDisplay(out io.Writer, totalFiles int) *ProgressDisplay {
	return &ProgressDisplay{
		out:        out,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		totalFiles: totalFiles,
		active:     make(map[string]*transfer),
		startTime:  time.Now(),
	}
}

// Start marks the start of a new download. total is -1 when unknown.
func (p *ProgressDisplay) Start(name string, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active[name] = &transfer{total: total}
	p.current = name
	p.render(false)
}

// Advance records n more bytes written for name
func (p *ProgressDisplay) Advance(name string, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.active[name]; ok {
		t.written += n
	}
	p.bytes += n
	p.render(false)
}

// Finish marks a download as complete or failed
func (p *ProgressDisplay) Finish(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, name)
	if err != nil {
		p.failed++
	} else {
		p.done++
	}
	if p.current == name {
		p.current = ""
		for other := range p.active {
			p.current = other
			break
		}
	}
	p.render(true)
}

// Complete prints the final line and a short summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = ""
	p.render(true)

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.out, "\n%s Downloaded %d of %d files (%s in %s)\n",
		Green("✓"), p.done, p.totalFiles, FormatBytes(p.bytes), formatDuration(elapsed))
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), p.failed)
	}
}

// Percent is the share of files that have finished, failed ones included
func (p *ProgressDisplay) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent()
}

func (p *ProgressDisplay) percent() float64 {
	if p.totalFiles == 0 {
		return 1
	}
	finished := float64(p.done + p.failed)

	// credit partial transfers with a known size
	for _, t := range p.active {
		if t.total > 0 {
			finished += float64(t.written) / float64(t.total)
		}
	}
	pct := finished / float64(p.totalFiles)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func (p *ProgressDisplay) render(force bool) {
	if !force && time.Since(p.lastRender) < renderInterval {
		return
	}
	p.lastRender = time.Now()

	line := fmt.Sprintf("%s %d/%d • %s",
		p.bar.ViewAs(p.percent()),
		p.done+p.failed,
		p.totalFiles,
		FormatBytes(p.bytes),
	)
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	if p.current != "" {
		line += " • " + Dim(filepath.Base(p.current))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", lineWidth), line)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
