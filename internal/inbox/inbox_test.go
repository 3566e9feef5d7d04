package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zeto-space/exoclassify/internal/bulk"
	"github.com/zeto-space/exoclassify/internal/pipeline"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAnalyzer) AnalyzeBatch(ctx context.Context, records []schema.Record) (pipeline.BatchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return pipeline.BatchResult{}, f.err
	}
	raws := make([]verdict.RawServiceResult, len(records))
	for i := range records {
		raws[i] = verdict.RawServiceResult{"model_prediction": "confirmed", "confidence_score": 88.0}
	}
	return pipeline.BatchResult{Records: records, Raw: raws}, nil
}

const koi = "orbper,trandep,trandur,rade,insol,eqt,teff,logg,rad\n1,100,3.5,1.2,1,288,5778,4.5,1\n"

func TestIsInput(t *testing.T) {
	tests := map[string]bool{
		"/in/koi.csv":             true,
		"/in/KOI.CSV":             true,
		"/in/koi.parquet":         true,
		"/in/koi.results.csv":     false,
		"/in/koi.csv.results.csv": false,
		"/in/koi.error.txt":       false,
		"/in/.koi.csv":            false,
		"/in/notes.txt":           false,
	}
	for path, want := range tests {
		assert.Equal(t, want, IsInput(path), path)
	}
	assert.Equal(t, "/in/koi.csv.results.csv", ResultsPath("/in/koi.csv"))
	assert.Equal(t, "/in/koi.csv.error.txt", ErrorPath("/in/koi.csv"))
	assert.False(t, IsInput(ResultsPath("/in/koi.parquet")))
}

func TestProcessWritesResults(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, &fakeAnalyzer{})
	require.NoError(t, err)

	path := filepath.Join(dir, "koi.csv")
	require.NoError(t, os.WriteFile(path, []byte(koi), 0644))
	require.NoError(t, os.WriteFile(ErrorPath(path), []byte("old\n"), 0644))

	require.NoError(t, w.Process(context.Background(), path))

	data, err := os.ReadFile(ResultsPath(path))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "orbper,trandep,trandur,rade,insol,eqt,teff,logg,rad,model_prediction,confidence_score", lines[0])
	assert.Equal(t, "1,100,3.5,1.2,1,288,5778,4.5,1,confirmed,88", lines[1])

	_, err = os.Stat(ErrorPath(path))
	assert.True(t, os.IsNotExist(err), "stale error file should be removed")
}

func TestSameStemInputsKeepSeparateResults(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, &fakeAnalyzer{})
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "koi.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(koi), 0644))

	records, err := bulk.Parse(koi + "2,200,2.5,2.2,3,300,5000,4.4,0.9\n")
	require.NoError(t, err)
	rows := make([]bulk.ParquetRow, len(records))
	for i, r := range records {
		rows[i] = bulk.ParquetRowFrom(r)
	}
	parquetPath := filepath.Join(dir, "koi.parquet")
	require.NoError(t, parquet.WriteFile(parquetPath, rows))

	require.NoError(t, w.Process(context.Background(), csvPath))
	require.NoError(t, w.Process(context.Background(), parquetPath))
	require.NotEqual(t, ResultsPath(csvPath), ResultsPath(parquetPath))

	lineCount := func(path string) int {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
	}
	assert.Equal(t, 2, lineCount(ResultsPath(csvPath)), "header and one row")
	assert.Equal(t, 3, lineCount(ResultsPath(parquetPath)), "header and two rows")
}

func TestProcessWritesErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("parse", func(t *testing.T) {
		fa := &fakeAnalyzer{}
		w, err := New(dir, fa)
		require.NoError(t, err)
		path := filepath.Join(dir, "short.csv")
		require.NoError(t, os.WriteFile(path, []byte("orbper,teff\n1,5000\n"), 0644))

		require.Error(t, w.Process(context.Background(), path))
		data, err := os.ReadFile(ErrorPath(path))
		require.NoError(t, err)
		assert.Contains(t, string(data), "Missing required parameters")
		assert.Equal(t, 0, fa.calls)
	})

	t.Run("remote", func(t *testing.T) {
		w, err := New(dir, &fakeAnalyzer{err: errors.New("service down")})
		require.NoError(t, err)
		path := filepath.Join(dir, "down.csv")
		require.NoError(t, os.WriteFile(path, []byte(koi), 0644))

		require.Error(t, w.Process(context.Background(), path))
		data, err := os.ReadFile(ErrorPath(path))
		require.NoError(t, err)
		assert.Equal(t, "service down\n", string(data))
		_, err = os.Stat(ResultsPath(path))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.csv"), []byte(koi), 0644))

	w, err := New(dir, &fakeAnalyzer{})
	require.NoError(t, err)
	w.Debounce = 20 * time.Millisecond
	w.ScanExisting = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "existing.csv.results.csv"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.csv"), []byte(koi), 0644))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "dropped.csv.results.csv"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
