// Package progress prints console progress for an index run.
//
// On a terminal the batch counter is redrawn in place; otherwise each
// committed batch is printed on its own line so output stays readable in
// logs and pipes.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"media-index/internal/indexer"
)

// Printer implements indexer.Reporter.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	started time.Time
	drawn   int // width of the in-place line, 0 when none is on screen
}

// New returns a Printer writing to out.
func New(out io.Writer) *Printer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return newPrinter(out, tty)
}

func newPrinter(out io.Writer, tty bool) *Printer {
	return &Printer{out: out, tty: tty, started: time.Now()}
}

// PhaseChanged announces the pruning pass; other phases are too frequent
// to print.
func (p *Printer) PhaseChanged(phase indexer.Phase) {
	if phase != indexer.PhasePruning {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	fmt.Fprintln(p.out, "Pruning missing files...")
}

// FilesToProcess prints the number of new or changed files.
func (p *Printer) FilesToProcess(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "Files to process: %d\n", n)
}

// BatchCommitted reports a committed batch.
func (p *Printer) BatchCommitted(batch, total, indexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("Batch %d/%d committed, %d files indexed (%s)",
		batch, total, indexed, time.Since(p.started).Round(time.Second))

	if !p.tty {
		fmt.Fprintln(p.out, line)
		return
	}

	pad := ""
	if n := p.drawn - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
	p.drawn = len(line)
}

// Finished prints the completion message and a one-line summary.
func (p *Printer) Finished(res indexer.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	fmt.Fprintln(p.out, "Indexing complete.")
	fmt.Fprintf(p.out, "  scanned %d, unchanged %d, indexed %d, pruned %d in %s\n",
		res.Scanned, res.Unchanged, res.Indexed, res.Pruned, res.Duration.Round(time.Millisecond))
	if res.PruneSkipped {
		fmt.Fprintln(p.out, "  pruning skipped: scan found no files")
	}
	if res.BatchesWithoutMetadata > 0 {
		fmt.Fprintf(p.out, "  %d batches indexed without metadata\n", res.BatchesWithoutMetadata)
	}
}

func (p *Printer) endLine() {
	if p.drawn > 0 {
		fmt.Fprintln(p.out)
		p.drawn = 0
	}
}
