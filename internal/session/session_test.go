package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/models"
)

type captureArchiver struct {
	mu   sync.Mutex
	recs []Record
	err  error
}

func (c *captureArchiver) Archive(_ context.Context, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return c.err
}

func record(id, instrument string) Record {
	return Record{Summary: models.SessionSummary{Session: id, Instrument: instrument, Status: consts.StatusCompleted}}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestArtifactsReadAfterWrite(t *testing.T) {
	r := NewRegistry()
	a, err := r.Open("s1")
	require.NoError(t, err)

	_, ok := a.Get(consts.ArtifactDraft)
	assert.False(t, ok)

	a.Put(consts.ArtifactDraft, "v1")
	a.Put(consts.ArtifactDraft, "v2")
	v, ok := a.Get(consts.ArtifactDraft)
	require.True(t, ok)
	assert.Equal(t, "v2", v)

	snap := a.Snapshot()
	a.Put(consts.ArtifactDraft, "v3")
	assert.Equal(t, "v2", snap[consts.ArtifactDraft])

	a.Delete(consts.ArtifactDraft)
	_, ok = a.Get(consts.ArtifactDraft)
	assert.False(t, ok)
}

func TestNamespacesAreIsolated(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			a, err := r.Open(id)
			if !assert.NoError(t, err) {
				return
			}
			for j := 0; j < 50; j++ {
				a.Put(consts.ArtifactContext, id)
			}
			v, _ := a.Get(consts.ArtifactContext)
			assert.Equal(t, id, v)
			assert.Equal(t, []string{consts.ArtifactContext}, a.Keys())
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, r.Len())
}

func TestOpenTwiceFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Open("dup")
	require.NoError(t, err)
	_, err = r.Open("dup")
	require.ErrorIs(t, err, ErrSessionOpen)
}

func TestCloseArchivesOrDiscards(t *testing.T) {
	capture := &captureArchiver{}
	r := NewRegistry(capture, nil)

	a, _ := r.Open("keep")
	a.Put(consts.ArtifactDraft, "# FINAL REPORT")
	require.NoError(t, r.Close(context.Background(), record("keep", "AAPL"), true))

	b, _ := r.Open("drop")
	b.Put(consts.ArtifactDraft, "discarded")
	require.NoError(t, r.Close(context.Background(), record("drop", "AAPL"), false))

	require.Len(t, capture.recs, 1)
	assert.Equal(t, "# FINAL REPORT", capture.recs[0].Artifacts[consts.ArtifactDraft])
	assert.Equal(t, 0, r.Len())

	err := r.Close(context.Background(), record("keep", "AAPL"), true)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestCloseRunsEveryArchiver(t *testing.T) {
	failing := &captureArchiver{err: errors.New("disk full")}
	ok := &captureArchiver{}
	r := NewRegistry(failing, ok)
	_, _ = r.Open("s")

	err := r.Close(context.Background(), record("s", "AAPL"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, ok.recs, 1)
}

func TestMarkdownArchiver(t *testing.T) {
	root := t.TempDir()
	m := NewMarkdownArchiver(root)
	rec := record("abc", "MC.PA")
	rec.Artifacts = map[string]string{
		consts.ArtifactDraft: "# FINAL REPORT\n",
		consts.ArtifactBull:  "## ARGUMENTS FOR BUYING\n",
	}
	require.NoError(t, m.Archive(context.Background(), rec))

	dir := filepath.Join(root, "MC.PA", "abc")
	assert.Equal(t, dir, m.Dir("MC.PA", "abc"))
	body, err := os.ReadFile(filepath.Join(dir, "report-draft.md"))
	require.NoError(t, err)
	assert.Equal(t, "# FINAL REPORT\n", string(body))
	assert.FileExists(t, filepath.Join(dir, "bull-opinion.md"))
	assert.FileExists(t, filepath.Join(dir, "summary.json"))

	entries, err := os.ReadDir(filepath.Join(root, "MC.PA"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp dirs left behind")

	rec.Artifacts = map[string]string{consts.ArtifactDraft: "second"}
	require.NoError(t, m.Archive(context.Background(), rec))
	assert.NoFileExists(t, filepath.Join(dir, "bull-opinion.md"))
}

func TestMarkdownArchiverSanitizes(t *testing.T) {
	m := NewMarkdownArchiver("/r")
	assert.Equal(t, filepath.Join("/r", "unknown", "a_b"), m.Dir("", "a/b"))
	assert.Equal(t, filepath.Join("/r", "unknown", "session"), m.Dir("..", ""))
}

func TestMarkdownArchiverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := t.TempDir()
	err := NewMarkdownArchiver(root).Archive(ctx, record("x", "AAPL"))
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(root, "AAPL"))
}
