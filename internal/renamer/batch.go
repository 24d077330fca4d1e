package renamer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfrename/internal/metrics"
)

// Runner processes a single file.
type Runner interface {
	Run(ctx context.Context, path string) Result
}

type Summary struct {
	RunID   string
	Renamed int
	Skipped int
	Failed  int
	// Interrupted is set when the context ended before every file ran.
	Interrupted bool
	Results     []Result
}

type Batch struct {
	job Runner
}

func NewBatch(job Runner) *Batch { return &Batch{job: job} }

// Run processes every PDF directly inside dir, newest first, one at a time.
// Only a directory that cannot be listed is an error.
func (b *Batch) Run(ctx context.Context, dir string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	lg := log.With().Str("run_id", sum.RunID).Str("dir", dir).Logger()

	files, err := ListPDFs(dir)
	if err != nil {
		return sum, err
	}
	lg.Info().Int("files", len(files)).Msg("processing PDFs")

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			sum.Interrupted = true
			lg.Warn().Err(err).Int("remaining", len(files)-len(sum.Results)).Msg("batch interrupted")
			break
		}
		res := b.job.Run(ctx, path)
		switch res.Outcome {
		case Renamed:
			sum.Renamed++
		case Failed:
			sum.Failed++
		default:
			sum.Skipped++
		}
		sum.Results = append(sum.Results, res)
	}

	metrics.MarkRunFinished(time.Now())
	lg.Info().
		Int("renamed", sum.Renamed).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Bool("interrupted", sum.Interrupted).
		Msg("[DONE] finished processing all PDFs")
	return sum, nil
}

type pdfEntry struct {
	path    string
	name    string
	modTime time.Time
}

// ListPDFs returns the regular files in dir (not recursive) with a .pdf
// extension in any case, newest modification time first. Equal times are
// ordered by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var pdfs []pdfEntry
	for _, e := range entries {
		if !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		full := filepath.Join(dir, e.Name())
		// Stat follows symlinks so a link to a regular file counts.
		st, err := os.Stat(full)
		if err != nil {
			log.Debug().Err(err).Str("file", e.Name()).Msg("skipping unreadable entry")
			continue
		}
		if !st.Mode().IsRegular() {
			continue
		}
		pdfs = append(pdfs, pdfEntry{path: full, name: e.Name(), modTime: st.ModTime()})
	}
	sort.Slice(pdfs, func(i, k int) bool {
		if !pdfs[i].modTime.Equal(pdfs[k].modTime) {
			return pdfs[i].modTime.After(pdfs[k].modTime)
		}
		return pdfs[i].name < pdfs[k].name
	})

	out := make([]string, len(pdfs))
	for i, p := range pdfs {
		out[i] = p.path
	}
	return out, nil
}
