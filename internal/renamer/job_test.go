package renamer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfrename/internal/metadata"
	"github.com/local/pdfrename/internal/pdfmeta"
	"github.com/local/pdfrename/internal/pdftext"
)

const pdfHeader = "%PDF-1.4\n"

// fakeText returns canned text per file name; a missing entry has no text.
type fakeText map[string]string

func (f fakeText) FirstPages(path string, n int) (string, error) {
	if t, ok := f[filepath.Base(path)]; ok && t != "" {
		return t, nil
	}
	return "", pdftext.ErrNoText
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type writeCall struct {
	src, dst string
	info     pdfmeta.Info
}

// fakeWriter copies src to dst and appends the info it was given.
type fakeWriter struct {
	mu     sync.Mutex
	calls  []writeCall
	failOn int // 1-based call number; 0 never fails
}

func (w *fakeWriter) Write(src, dst string, info pdfmeta.Info) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, writeCall{src, dst, info})
	if w.failOn == len(w.calls) {
		return errors.New("disk full")
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append(b, fmt.Sprintf("|%s|%s|%s", info.Author, info.Title, info.Year)...), 0o644)
}

type fakeArchiver struct {
	err   error
	paths []string
}

func (a *fakeArchiver) Archive(_ context.Context, path string) (string, error) {
	a.paths = append(a.paths, path)
	if a.err != nil {
		return "", a.err
	}
	return "originals/" + filepath.Base(path), nil
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(pdfHeader+name), 0o644))
	return p
}

func assertUntouched(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pdfHeader+filepath.Base(path), string(b))
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	es, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range es {
		names = append(names, e.Name())
	}
	return names
}

type harness struct {
	text   fakeText
	llm    *fakeCompleter
	writer *fakeWriter
	arch   *fakeArchiver
	opts   Options
}

func newHarness(reply string) *harness {
	return &harness{
		text:   fakeText{},
		llm:    &fakeCompleter{reply: reply},
		writer: &fakeWriter{},
	}
}

func (h *harness) job() *Job {
	deps := Dependencies{
		Text:     h.text,
		Inferrer: metadata.NewInferrer(h.llm, "Return author, title and pubdate as JSON."),
		Writer:   h.writer,
	}
	if h.arch != nil {
		deps.Archiver = h.arch
	}
	return NewJob(deps, h.opts)
}

const janeReply = "Here you go:\n```json\n{\"author\":\"Jane Doe\",\"title\":\"Sample Report\",\"pubdate\":\"2021\"}\n```"

func TestJob_RenamesAndWritesMetadata(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "scan0001.pdf")
	h := newHarness(janeReply)
	h.text["scan0001.pdf"] = "A report ... by Jane Doe, 2021 ..."

	res := h.job().Run(context.Background(), src)

	want := filepath.Join(dir, "Jane Doe - Sample Report (2021).pdf")
	require.Equal(t, Renamed, res.Outcome, res.Reason)
	assert.Equal(t, want, res.Path)
	assert.Equal(t, src, res.Source)
	assert.Equal(t, StateDone, res.State)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, metadata.Record{Author: "Jane Doe", Title: "Sample Report", PubDate: "2021"}, res.Record)

	assert.NoFileExists(t, src, "original deleted")
	assert.Equal(t, []string{"Jane Doe - Sample Report (2021).pdf"}, entries(t, dir))

	info := pdfmeta.Info{Author: "Jane Doe", Title: "Sample Report", Year: "2021"}
	require.Len(t, h.writer.calls, 2)
	assert.Equal(t, writeCall{src, want, info}, h.writer.calls[0])
	assert.Equal(t, writeCall{want, want, info}, h.writer.calls[1], "refresh pass")
}

func TestJob_NoTextIsSkipped(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "image-only.pdf")
	h := newHarness(janeReply)

	res := h.job().Run(context.Background(), src)

	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, src, res.Path)
	assert.Equal(t, StateExtracting, res.Step)
	assert.Contains(t, res.Reason, "no extractable text")
	assertUntouched(t, src)
	assert.Zero(t, h.llm.calls)
	assert.Empty(t, h.writer.calls)
}

func TestJob_RejectedMetadataIsSkipped(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "x.pdf")
	h := newHarness(`{"author":"unknown","title":"X","pubdate":"2020"}`)
	h.text["x.pdf"] = "some text"

	res := h.job().Run(context.Background(), src)

	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, StateInferring, res.Step)
	assert.Equal(t, src, res.Path)
	assert.Contains(t, res.Reason, "author")
	assertUntouched(t, src)
	assert.Empty(t, h.writer.calls)
}

func TestJob_SkipsAndFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		content  string
		outcome  Outcome
		step     State
		reason   string
		archived bool
	}{
		{
			name:    "not a pdf",
			content: "plain notes",
			outcome: Skipped,
			step:    StateExtracting,
			reason:  "not a PDF",
		},
		{
			name:    "model call fails",
			setup:   func(h *harness) { h.llm.err = errors.New("connection reset") },
			outcome: Skipped,
			step:    StateInferring,
			reason:  "connection reset",
		},
		{
			name:    "malformed reply",
			setup:   func(h *harness) { h.llm.reply = "I could not find anything." },
			outcome: Skipped,
			step:    StateInferring,
			reason:  "no metadata",
		},
		{
			name:     "archive fails",
			setup:    func(h *harness) { h.arch = &fakeArchiver{err: errors.New("access denied")} },
			outcome:  Failed,
			step:     StateRenaming,
			reason:   "access denied",
			archived: true,
		},
		{
			name:    "rewrite fails",
			setup:   func(h *harness) { h.writer.failOn = 1 },
			outcome: Failed,
			step:    StateRewriting,
			reason:  "disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writePDF(t, dir, "doc.pdf")
			if tt.content != "" {
				require.NoError(t, os.WriteFile(src, []byte(tt.content), 0o644))
			}
			h := newHarness(janeReply)
			h.text["doc.pdf"] = "text"
			if tt.setup != nil {
				tt.setup(h)
			}

			res := h.job().Run(context.Background(), src)

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.step, res.Step)
			assert.Contains(t, res.Reason, tt.reason)
			assert.Equal(t, src, res.Path)
			assert.Equal(t, []string{"doc.pdf"}, entries(t, dir), "nothing renamed or left behind")
			if tt.archived {
				assert.Equal(t, []string{src}, h.arch.paths)
			}
		})
	}
}

func TestJob_ArchivesBeforeRewrite(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "doc.pdf")
	h := newHarness(janeReply)
	h.text["doc.pdf"] = "text"
	h.arch = &fakeArchiver{}

	res := h.job().Run(context.Background(), src)

	require.Equal(t, Renamed, res.Outcome, res.Reason)
	assert.Equal(t, []string{src}, h.arch.paths)
}

func TestJob_RefreshFailureKeepsRename(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "doc.pdf")
	h := newHarness(janeReply)
	h.text["doc.pdf"] = "text"
	h.writer.failOn = 2

	res := h.job().Run(context.Background(), src)

	assert.Equal(t, Renamed, res.Outcome)
	assert.FileExists(t, res.Path)
	assert.NoFileExists(t, src)
}

func TestJob_DryRun(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "doc.pdf")
	h := newHarness(janeReply)
	h.text["doc.pdf"] = "text"
	h.opts.DryRun = true

	res := h.job().Run(context.Background(), src)

	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, "dry run", res.Reason)
	assert.Equal(t, filepath.Join(dir, "Jane Doe - Sample Report (2021).pdf"), res.Planned)
	assert.Equal(t, src, res.Path)
	assertUntouched(t, src)
	assert.Empty(t, h.writer.calls)
}

func TestJob_PubdateWithoutYear(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "doc.pdf")
	h := newHarness(`{"author":"A. Author","title":"Notes: Part 1/2","pubdate":"n.d."}`)
	h.text["doc.pdf"] = "text"

	res := h.job().Run(context.Background(), src)

	require.Equal(t, Renamed, res.Outcome, res.Reason)
	assert.Equal(t, "A Author - Notes Part 12 (nd).pdf", filepath.Base(res.Path))
	require.NotEmpty(t, h.writer.calls)
	assert.Empty(t, h.writer.calls[0].info.Year)
	assert.Equal(t, "A Author", h.writer.calls[0].info.Author)
}

func TestJob_NameLimit(t *testing.T) {
	dir := t.TempDir()
	src := writePDF(t, dir, "doc.pdf")
	h := newHarness(fmt.Sprintf(`{"author":"A","title":%q,"pubdate":"2001"}`, strings.Repeat("word ", 100)))
	h.text["doc.pdf"] = "text"
	h.opts.NameLimit = 40

	res := h.job().Run(context.Background(), src)

	require.Equal(t, Renamed, res.Outcome, res.Reason)
	stem := strings.TrimSuffix(filepath.Base(res.Path), ".pdf")
	assert.LessOrEqual(t, len([]rune(stem)), 40)
	assert.Equal(t, strings.TrimSpace(stem), stem)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "extracting", StateExtracting.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func setMtime(t *testing.T, path string, ago time.Duration) {
	t.Helper()
	ts := time.Now().Add(-ago)
	require.NoError(t, os.Chtimes(path, ts, ts))
}
