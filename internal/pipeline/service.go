// Package pipeline runs records through classification, history and briefing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/history"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

// ErrEmptyBatch is returned when AnalyzeBatch gets no records.
var ErrEmptyBatch = errors.New("no records to analyze")

// Classifier is the remote service. *classify.Client implements it.
type Classifier interface {
	ClassifyOne(ctx context.Context, rec schema.Record, budget time.Duration) (verdict.Verdict, error)
	ClassifyMany(ctx context.Context, records []schema.Record, budget time.Duration) ([]verdict.RawServiceResult, error)
}

// Recorder persists analyses. *history.Store implements it.
type Recorder interface {
	Save(ctx context.Context, a *history.Analysis) error
}

// Briefer writes an optional narrative for a result.
type Briefer interface {
	Single(ctx context.Context, rec schema.Record, v verdict.Verdict) (string, error)
	Batch(ctx context.Context, s verdict.Summary) (string, error)
}

// Options tune a Service. Zero values disable the optional parts.
type Options struct {
	// Timeout and BatchTimeout are passed to the classifier; 0 means its default.
	Timeout      time.Duration
	BatchTimeout time.Duration
	// ChunkSize splits larger batches into concurrent requests of this size.
	ChunkSize int
	// Concurrency caps in-flight chunk requests. Defaults to 4.
	Concurrency int
	// Strict range checks bulk records before submission.
	Strict bool

	History Recorder
	Briefer Briefer
}

// Service is safe for concurrent use when its dependencies are.
type Service struct {
	classifier Classifier
	opts       Options
}

// New creates a service around c.
func New(c Classifier, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{classifier: c, opts: opts}
}

// SingleResult is the outcome of AnalyzeOne.
type SingleResult struct {
	Record     schema.Record   `json:"parameters"`
	Verdict    verdict.Verdict `json:"result"`
	AnalysisID string          `json:"analysis_id,omitempty"`
	Briefing   string          `json:"briefing,omitempty"`
}

// BatchResult is the outcome of AnalyzeBatch.
type BatchResult struct {
	Records    []schema.Record            `json:"-"`
	Raw        []verdict.RawServiceResult `json:"results"`
	Verdicts   []verdict.Verdict          `json:"verdicts"`
	Summary    verdict.Summary            `json:"summary"`
	AnalysisID string                     `json:"analysis_id,omitempty"`
	Briefing   string                     `json:"briefing,omitempty"`
}

// Rows merges inputs and results for export.
func (b BatchResult) Rows() []export.Row {
	return export.ResultRows(b.Records, b.Raw)
}

// AnalyzeOne classifies a completed interactive record.
func (s *Service) AnalyzeOne(ctx context.Context, rec schema.Record) (SingleResult, error) {
	start := time.Now()
	v, err := s.classifier.ClassifyOne(ctx, rec, s.opts.Timeout)
	if err != nil {
		return SingleResult{}, err
	}
	slog.Info("Single analysis complete", "category", v.Category, "confidence", v.Confidence, "duration", time.Since(start))

	res := SingleResult{Record: rec, Verdict: v}
	res.AnalysisID = s.record(ctx, &history.Analysis{
		Kind:       history.KindSingle,
		Records:    1,
		Summary:    verdict.Summarize([]verdict.Verdict{v}),
		Verdicts:   []verdict.Verdict{v},
		Parameters: []schema.Record{rec},
	})

	if s.opts.Briefer != nil {
		text, err := s.opts.Briefer.Single(ctx, rec, v)
		if err != nil {
			slog.Warn("Briefing failed", "err", err)
		} else {
			res.Briefing = text
		}
	}
	return res, nil
}

// AnalyzeBatch classifies bulk records. Results stay in input order.
func (s *Service) AnalyzeBatch(ctx context.Context, records []schema.Record) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}
	if s.opts.Strict {
		if err := CheckRanges(records); err != nil {
			return BatchResult{}, err
		}
	}

	start := time.Now()
	raws, err := s.submit(ctx, records)
	if err != nil {
		return BatchResult{}, err
	}

	verdicts := verdict.NormalizeMany(raws)
	res := BatchResult{
		Records:  records,
		Raw:      raws,
		Verdicts: verdicts,
		Summary:  verdict.SummarizeRaw(raws),
	}
	slog.Info("Batch analysis complete",
		"records", len(records),
		"confirmed", res.Summary.Confirmed,
		"candidate", res.Summary.Candidate,
		"false_positives", res.Summary.FalsePositives,
		"duration", time.Since(start))

	res.AnalysisID = s.record(ctx, &history.Analysis{
		Kind:       history.KindBatch,
		Records:    len(records),
		Summary:    res.Summary,
		Verdicts:   verdicts,
		Parameters: records,
	})

	if s.opts.Briefer != nil {
		text, err := s.opts.Briefer.Batch(ctx, res.Summary)
		if err != nil {
			slog.Warn("Briefing failed", "err", err)
		} else {
			res.Briefing = text
		}
	}
	return res, nil
}

func (s *Service) submit(ctx context.Context, records []schema.Record) ([]verdict.RawServiceResult, error) {
	size := s.opts.ChunkSize
	if size <= 0 || len(records) <= size {
		return s.classifier.ClassifyMany(ctx, records, s.opts.BatchTimeout)
	}

	chunks := make([][]schema.Record, 0, (len(records)+size-1)/size)
	for i := 0; i < len(records); i += size {
		end := min(i+size, len(records))
		chunks = append(chunks, records[i:end])
	}
	slog.Debug("Submitting batch in chunks", "records", len(records), "chunks", len(chunks), "concurrency", s.opts.Concurrency)

	results := make([][]verdict.RawServiceResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			raws, err := s.classifier.ClassifyMany(gctx, chunk, s.opts.BatchTimeout)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			if len(raws) != len(chunk) {
				return fmt.Errorf("chunk %d: sent %d records, received %d results", i+1, len(chunk), len(raws))
			}
			results[i] = raws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]verdict.RawServiceResult, 0, len(records))
	for _, raws := range results {
		out = append(out, raws...)
	}
	return out, nil
}

// record saves a to history and returns its ID, or "" when history is off or fails.
func (s *Service) record(ctx context.Context, a *history.Analysis) string {
	if s.opts.History == nil {
		return ""
	}
	if err := s.opts.History.Save(ctx, a); err != nil {
		slog.Error("Failed to save analysis", "kind", a.Kind, "err", err)
		return ""
	}
	return a.ID
}
