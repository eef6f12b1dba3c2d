package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var statsSeq uint64

// OperationStats aggregates the outcomes of one service operation.
type OperationStats struct {
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
	TotalMS float64 `json:"total_ms"`
}

// RunSummary is a point-in-time copy of a RunStats.
type RunSummary struct {
	Operations map[string]OperationStats `json:"operations"`
	Archives   map[string]int64          `json:"archives"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// RunStats counts service operations and archive outcomes of one process
// and publishes them through expvar.
type RunStats struct {
	name     string
	mu       sync.Mutex
	ops      map[string]OperationStats
	archives map[string]int64
}

// NewRunStats publishes a recorder under name, or under a generated name
// when name is empty.
func NewRunStats(name string) *RunStats {
	if name == "" {
		name = fmt.Sprintf("elncore_ingest_%d", atomic.AddUint64(&statsSeq, 1))
	}
	s := &RunStats{name: name, ops: map[string]OperationStats{}, archives: map[string]int64{}}
	expvar.Publish(name, expvar.Func(func() any { return s.Summary() }))
	return s
}

// Name is the expvar name of the recorder.
func (s *RunStats) Name() string { return s.name }

// Summary copies the counters.
func (s *RunStats) Summary() RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := RunSummary{
		Operations: make(map[string]OperationStats, len(s.ops)),
		Archives:   make(map[string]int64, len(s.archives)),
		RecordedAt: time.Now().UTC(),
	}
	for op, st := range s.ops {
		sum.Operations[op] = st
	}
	for outcome, n := range s.archives {
		sum.Archives[outcome] = n
	}
	return sum
}

// Observe implements MetricsRecorder.
func (s *RunStats) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ops[operation]
	if success {
		st.Success++
	} else {
		st.Error++
	}
	st.TotalMS += float64(duration) / float64(time.Millisecond)
	s.ops[operation] = st
}

// ObserveArchive implements ArchiveObserver.
func (s *RunStats) ObserveArchive(outcome string) {
	s.mu.Lock()
	s.archives[outcome]++
	s.mu.Unlock()
}

type multiMetrics []MetricsRecorder

// MultiMetrics fans observations out to every recorder. Archive outcomes
// reach the recorders that implement ArchiveObserver.
func MultiMetrics(recorders ...MetricsRecorder) MetricsRecorder {
	var out multiMetrics
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiMetrics) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

func (m multiMetrics) ObserveArchive(outcome string) {
	for _, r := range m {
		if ao, ok := r.(ArchiveObserver); ok {
			ao.ObserveArchive(outcome)
		}
	}
}

// Span is one finished service operation as written by SpanLog.
type Span struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// SpanLog is a Tracer that keeps finished spans and, when given a writer,
// writes each as a JSON line.
type SpanLog struct {
	mu    sync.Mutex
	spans []Span
	enc   *json.Encoder
}

// NewSpanLog returns a span log writing to w; w may be nil.
func NewSpanLog(w io.Writer) *SpanLog {
	l := &SpanLog{}
	if w != nil {
		l.enc = json.NewEncoder(w)
	}
	return l
}

// Spans copies the finished spans in end order.
func (l *SpanLog) Spans() []Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Span(nil), l.spans...)
}

// Start implements Tracer.
func (l *SpanLog) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &logSpan{log: l, operation: operation, started: time.Now().UTC()}
}

type logSpan struct {
	log       *SpanLog
	operation string
	started   time.Time
}

func (s *logSpan) End(err error) {
	ended := time.Now().UTC()
	sp := Span{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		sp.Status, sp.Error = "error", err.Error()
	}
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	s.log.spans = append(s.log.spans, sp)
	if s.log.enc != nil {
		_ = s.log.enc.Encode(sp)
	}
}
