package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeto-space/exoclassify/internal/history"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

type fakeClassifier struct {
	mu       sync.Mutex
	calls    int
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   float64
}

func (f *fakeClassifier) ClassifyOne(ctx context.Context, rec schema.Record, budget time.Duration) (verdict.Verdict, error) {
	return verdict.Verdict{Category: verdict.Confirmed, Confidence: 80}, nil
}

func (f *fakeClassifier) ClassifyMany(ctx context.Context, records []schema.Record, budget time.Duration) ([]verdict.RawServiceResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	out := make([]verdict.RawServiceResult, len(records))
	for i, rec := range records {
		orbper, _ := rec.Get("orbper")
		if f.failOn != 0 && orbper == f.failOn {
			return nil, errors.New("boom")
		}
		category := "candidate"
		if int(orbper)%2 == 0 {
			category = "confirmed"
		}
		out[i] = verdict.RawServiceResult{"orbper": orbper, "model_prediction": category, "confidence_score": 50.0}
	}
	return out, nil
}

func records(t *testing.T, n int) []schema.Record {
	t.Helper()
	out := make([]schema.Record, n)
	for i := range out {
		rec, err := schema.FromValues([schema.Size]float64{float64(i + 1), 100, 3.5, 1.2, 1, 288, 5778, 4.5, 1})
		require.NoError(t, err)
		out[i] = rec
	}
	return out
}

type fakeBriefer struct{ err error }

func (b fakeBriefer) Single(ctx context.Context, rec schema.Record, v verdict.Verdict) (string, error) {
	return "single briefing", b.err
}

func (b fakeBriefer) Batch(ctx context.Context, s verdict.Summary) (string, error) {
	return "batch briefing", b.err
}

func TestAnalyzeOneRecordsHistory(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc := New(&fakeClassifier{}, Options{History: store, Briefer: fakeBriefer{}})
	res, err := svc.AnalyzeOne(context.Background(), records(t, 1)[0])
	require.NoError(t, err)

	assert.Equal(t, verdict.Confirmed, res.Verdict.Category)
	assert.Equal(t, "single briefing", res.Briefing)
	require.NotEmpty(t, res.AnalysisID)

	saved, err := store.Get(context.Background(), res.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, history.KindSingle, saved.Kind)
	assert.Equal(t, 1, saved.Summary.Confirmed)
}

func TestAnalyzeBatchChunkedKeepsOrder(t *testing.T) {
	fc := &fakeClassifier{}
	svc := New(fc, Options{ChunkSize: 3, Concurrency: 2})

	res, err := svc.AnalyzeBatch(context.Background(), records(t, 10))
	require.NoError(t, err)

	require.Len(t, res.Raw, 10)
	for i, raw := range res.Raw {
		orbper, _ := raw.Number("orbper")
		assert.Equal(t, float64(i+1), orbper, "result %d out of order", i)
	}
	assert.Equal(t, 4, fc.calls)
	assert.LessOrEqual(t, fc.peak.Load(), int32(2))
	assert.Equal(t, verdict.Summary{Total: 10, Confirmed: 5, Candidate: 5}, res.Summary)
	assert.Len(t, res.Rows(), 10)
}

func TestAnalyzeBatchChunkFailureFailsBatch(t *testing.T) {
	svc := New(&fakeClassifier{failOn: 7}, Options{ChunkSize: 2})
	_, err := svc.AnalyzeBatch(context.Background(), records(t, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 4")
}

func TestAnalyzeBatchUnchunked(t *testing.T) {
	fc := &fakeClassifier{}
	svc := New(fc, Options{})
	res, err := svc.AnalyzeBatch(context.Background(), records(t, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, fc.calls)
	assert.Len(t, res.Verdicts, 5)
}

func TestAnalyzeBatchEmpty(t *testing.T) {
	svc := New(&fakeClassifier{}, Options{})
	_, err := svc.AnalyzeBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestStrictRejectsOutOfRange(t *testing.T) {
	recs := records(t, 3)
	bad, err := schema.FromValues([schema.Size]float64{1, 100, 3.5, 1.2, 1, 288, 9000, 4.5, 1})
	require.NoError(t, err)
	recs = append(recs, bad)

	fc := &fakeClassifier{}
	svc := New(fc, Options{Strict: true})
	_, err = svc.AnalyzeBatch(context.Background(), recs)

	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 4, rangeErr.Row)
	assert.Equal(t, "teff", rangeErr.Key)
	assert.ErrorIs(t, err, schema.ErrOutOfRange)
	assert.Equal(t, 0, fc.calls)
}

func TestBriefingFailureDoesNotFail(t *testing.T) {
	svc := New(&fakeClassifier{}, Options{Briefer: fakeBriefer{err: errors.New("no model")}})
	res, err := svc.AnalyzeBatch(context.Background(), records(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Total)
	assert.Empty(t, res.Briefing)
}
