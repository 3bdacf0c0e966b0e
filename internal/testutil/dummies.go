// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"sync"

	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns how many errors were logged.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// InfoMessages returns a copy of the info messages logged so far.
func (l *DummyLogger) InfoMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Infos...)
}

// ─── Analyzer ──────────────────────────────────────────────────────────

// FakeAnalyzer implements analyzer.Analyzer.
// By default every requested category scores Score (85 when zero).
// Set Err to fail every call, or Block to hold calls until it is closed
// or the context ends.
type FakeAnalyzer struct {
	Score   int
	Err     error
	Block   chan struct{}
	Results *model.CategoryResults

	mu    sync.Mutex
	Calls []string
}

func (f *FakeAnalyzer) Analyze(ctx context.Context, url string, categories []model.Category) (*model.CategoryResults, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, url)
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Results != nil {
		cp := *f.Results
		return &cp, nil
	}

	score := f.Score
	if score == 0 {
		score = 85
	}
	var out model.CategoryResults
	for _, c := range categories {
		switch c {
		case model.CategoryGDPR:
			out.GDPR.Score = score
		case model.CategoryAccessibility:
			out.Accessibility.Score = score
		case model.CategorySecurity:
			out.Security.Score = score
		case model.CategoryPerformance:
			out.Performance.Score = score
		case model.CategorySEO:
			out.SEO.Score = score
		}
	}
	return &out, nil
}

// CallCount returns how many times Analyze was invoked.
func (f *FakeAnalyzer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
