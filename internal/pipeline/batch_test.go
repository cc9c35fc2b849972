package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pageweight/internal/model"
)

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() })
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("audits every source in order", func(t *testing.T) {
		t.Parallel()

		sources := []string{
			"https://a.example/sitemap.xml",
			"https://b.example/sitemap.xml",
			"https://c.example/sitemap.xml",
		}
		factory := func(string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{name: "load", doFunc: func(_ context.Context, a *model.Audit) error {
				a.URLs = []string{a.Source}
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory,
			WithBatchLogger(quietLogger()),
			WithPrepare(func(a *model.Audit) { a.Report.Settings.Samples = 7 }),
		)
		audits, err := bp.ProcessBatch(context.Background(), sources)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(audits) != len(sources) {
			t.Fatalf("expected %d audits, got %d", len(sources), len(audits))
		}
		for i, a := range audits {
			if a.Source != sources[i] || len(a.URLs) != 1 || a.URLs[0] != sources[i] {
				t.Errorf("audit %d: unexpected state %+v", i, a)
			}
			if a.Report.Settings.Samples != 7 {
				t.Errorf("audit %d: expected prepared settings", i)
			}
		}
	})

	t.Run("failed audits are returned with their error", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("sitemap unreachable")
		factory := func(string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{name: "load", doFunc: func(context.Context, *model.Audit) error { return stepErr }})
			return p
		}

		audits, err := NewBatchProcessor(factory, WithBatchLogger(quietLogger())).
			ProcessBatch(context.Background(), []string{"https://a.example/sitemap.xml"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(audits[0].Error, stepErr) {
			t.Errorf("expected the audit error to be recorded, got %v", audits[0].Error)
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		factory := func(string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.Audit) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			}})
			return p
		}

		sources := []string{"a", "b", "c", "d", "e"}
		_, err := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(quietLogger())).
			ProcessBatch(context.Background(), sources)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := peak.Load(); got > 2 {
			t.Errorf("expected at most 2 concurrent audits, got %d", got)
		}
	})
}
