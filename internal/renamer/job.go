// Package renamer runs the per-file rename pipeline and the directory batch.
package renamer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfrename/internal/filename"
	"github.com/local/pdfrename/internal/filetype"
	"github.com/local/pdfrename/internal/metadata"
	"github.com/local/pdfrename/internal/metrics"
	"github.com/local/pdfrename/internal/pdfmeta"
	"github.com/local/pdfrename/internal/pdftext"
)

// State is a step of the per-file pipeline.
type State int

const (
	StateExtracting State = iota
	StateInferring
	StateValidating
	StateRenaming
	StateRewriting
	StateDone
	StateSkipped
	StateFailed
)

var stateNames = [...]string{"extracting", "inferring", "validating", "renaming", "rewriting", "done", "skipped", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

type Outcome string

const (
	Renamed Outcome = "renamed"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Result describes what happened to one file. Path is the destination when
// the file was renamed and the original path otherwise.
type Result struct {
	JobID   string
	Outcome Outcome
	Path    string
	Source  string
	// Planned is the destination a dry run would have used.
	Planned string
	Reason  string
	Record  metadata.Record
	// Step is the last step entered; State is the terminal state.
	Step  State
	State State
}

type TextExtractor interface {
	FirstPages(path string, n int) (string, error)
}

type MetadataInferrer interface {
	Infer(ctx context.Context, text string) (metadata.Record, error)
}

type MetadataWriter interface {
	Write(src, dst string, info pdfmeta.Info) error
}

// Archiver keeps a copy of the original before it is rewritten.
type Archiver interface {
	Archive(ctx context.Context, path string) (string, error)
}

type Dependencies struct {
	Text     TextExtractor
	Inferrer MetadataInferrer
	Writer   MetadataWriter
	// Optional. Nil disables archiving.
	Archiver Archiver
	// Optional. Defaults to a magic-byte check.
	IsPDF func(path string) (bool, error)
}

type Options struct {
	Pages     int
	NameLimit int
	DryRun    bool
}

type Job struct {
	deps Dependencies
	opts Options
}

func NewJob(deps Dependencies, opts Options) *Job {
	if deps.IsPDF == nil {
		deps.IsPDF = filetype.IsPDF
	}
	if opts.Pages <= 0 {
		opts.Pages = pdftext.DefaultPages
	}
	if opts.NameLimit <= 0 {
		opts.NameLimit = filename.DefaultLimit
	}
	return &Job{deps: deps, opts: opts}
}

// Run processes one file. Errors never escape; they end up in Result.Reason.
func (j *Job) Run(ctx context.Context, path string) (res Result) {
	res = Result{JobID: uuid.NewString(), Source: path, Path: path, Step: StateExtracting}
	lg := log.With().Str("job_id", res.JobID).Str("file", filepath.Base(path)).Logger()
	defer func() { metrics.IncJob(string(res.Outcome)) }()

	// Extracting
	start := time.Now()
	ok, err := j.deps.IsPDF(path)
	if err != nil {
		return skip(lg, res, fmt.Sprintf("detect type: %v", err))
	}
	if !ok {
		return skip(lg, res, "not a PDF")
	}
	text, err := j.deps.Text.FirstPages(path, j.opts.Pages)
	metrics.ObserveStage("extract", time.Since(start))
	if err != nil {
		if errors.Is(err, pdftext.ErrNoText) {
			return skip(lg, res, "no extractable text")
		}
		return skip(lg, res, fmt.Sprintf("extract text: %v", err))
	}

	// Inferring
	res.Step = StateInferring
	start = time.Now()
	rec, err := j.deps.Inferrer.Infer(ctx, text)
	metrics.ObserveStage("infer", time.Since(start))
	if err != nil {
		return skip(lg, res, fmt.Sprintf("no metadata: %v", err))
	}
	res.Record = rec

	// Validating
	res.Step = StateValidating
	dest, err := filename.ResolveDestination(filepath.Dir(path), filename.Candidate(rec, j.opts.NameLimit))
	if err != nil {
		return fail(lg, res, fmt.Sprintf("resolve destination: %v", err))
	}
	info := pdfmeta.Info{
		Author: filename.Sanitize(rec.Author, j.opts.NameLimit),
		Title:  filename.Sanitize(rec.Title, j.opts.NameLimit),
		Year:   rec.Year(),
	}
	if info.Year == "" {
		lg.Debug().Str("pubdate", rec.PubDate).Msg("no year in pubdate; CreationDate left unset")
	}
	if j.opts.DryRun {
		res.Planned = dest
		lg.Info().Str("outcome", string(Skipped)).Str("dest", filepath.Base(dest)).Msg("[DRY-RUN] would rename")
		res.Outcome, res.Reason, res.State = Skipped, "dry run", StateSkipped
		return res
	}

	// Renaming
	res.Step = StateRenaming
	if j.deps.Archiver != nil {
		key, err := j.deps.Archiver.Archive(ctx, path)
		if err != nil {
			return fail(lg, res, fmt.Sprintf("archive original: %v", err))
		}
		lg.Debug().Str("key", key).Msg("original archived")
	}

	// Rewriting
	res.Step = StateRewriting
	start = time.Now()
	if err := j.deps.Writer.Write(path, dest, info); err != nil {
		return fail(lg, res, fmt.Sprintf("rewrite metadata: %v", err))
	}
	metrics.ObserveStage("rename", time.Since(start))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		lg.Warn().Err(err).Msg("could not remove original after rename")
	}

	start = time.Now()
	if err := j.deps.Writer.Write(dest, dest, info); err != nil {
		lg.Warn().Err(err).Str("dest", filepath.Base(dest)).Msg("metadata refresh failed; renamed file kept")
	}
	metrics.ObserveStage("refresh", time.Since(start))

	res.Outcome, res.Path, res.Step, res.State = Renamed, dest, StateDone, StateDone
	lg.Info().
		Str("outcome", string(Renamed)).
		Str("dest", filepath.Base(dest)).
		Str("author", info.Author).
		Str("title", info.Title).
		Str("year", info.Year).
		Msg("[RENAME] renamed")
	return res
}

func skip(lg zerolog.Logger, res Result, reason string) Result {
	lg.Info().Str("outcome", string(Skipped)).Str("step", res.Step.String()).Str("reason", reason).Msg("[SKIP] file left unchanged")
	res.Outcome, res.Reason, res.State = Skipped, reason, StateSkipped
	return res
}

func fail(lg zerolog.Logger, res Result, reason string) Result {
	lg.Error().Str("outcome", string(Failed)).Str("step", res.Step.String()).Str("reason", reason).Msg("[FAIL] file left unchanged")
	res.Outcome, res.Reason, res.State = Failed, reason, StateFailed
	return res
}
