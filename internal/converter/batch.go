package converter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"heic_converter/internal/codec"
)

// FailureSink receives the per-file failures of a batch once it has been partitioned.
type FailureSink interface {
	ReportFailures(batchID string, failures []Failure)
}

// FailureSinkFunc adapts a function to FailureSink.
type FailureSinkFunc func(batchID string, failures []Failure)

func (f FailureSinkFunc) ReportFailures(batchID string, failures []Failure) { f(batchID, failures) }

// logSink is the default FailureSink.
type logSink struct{}

func (logSink) ReportFailures(batchID string, failures []Failure) {
	for _, f := range failures {
		slog.Warn("File failed to convert", "batch", batchID, "filename", f.Original.Name, "index", f.Original.Index, "error", f.Err)
	}
}

// Converter drives an Adapter over a batch of files in fixed-size groups.
type Converter struct {
	adapter   *Adapter
	groupSize int
	sink      FailureSink
	newID     func() string
}

// Option configures a Converter.
type Option func(*Converter)

// WithFailureSink sends per-file failures to s instead of the log.
func WithFailureSink(s FailureSink) Option {
	return func(c *Converter) { c.sink = s }
}

// New creates a Converter. A nil cfg uses NewDefaultConfig.
func New(adapter *Adapter, cfg *Config, opts ...Option) *Converter {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	groupSize := cfg.GroupSize
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	c := &Converter{
		adapter:   adapter,
		groupSize: groupSize,
		sink:      logSink{},
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertBatch converts files into target. Groups of files run one after another;
// the files of a group run concurrently. Every group runs to completion.
//
// The returned BatchResult holds the successes in input order. Failures go to the
// FailureSink. If files is non-empty and nothing converted, the error is an
// *AllConversionsFailedError.
func (c *Converter) ConvertBatch(ctx context.Context, files []InputFile, target codec.Format) (BatchResult, error) {
	batchID := c.newID()
	if len(files) == 0 {
		slog.Info("No files provided for conversion", "batch", batchID)
		return BatchResult{}, nil
	}

	slog.Info("Starting batch conversion", "batch", batchID, "files", len(files), "target", target, "groupSize", c.groupSize)
	outcomes := make([]Outcome, len(files))
	for start := 0; start < len(files); start += c.groupSize {
		end := min(start+c.groupSize, len(files))
		slog.Debug("Converting group", "batch", batchID, "from", start, "to", end-1)
		c.convertGroup(ctx, files[start:end], target, outcomes[start:end])
	}

	successes, failures := partition(outcomes)
	if len(failures) > 0 {
		c.sink.ReportFailures(batchID, failures)
	}
	if len(successes) == 0 {
		slog.Error("Every file in the batch failed", "batch", batchID, "failures", len(failures))
		return nil, &AllConversionsFailedError{BatchID: batchID, Failures: failures}
	}

	slog.Info("Batch conversion completed", "batch", batchID, "converted", len(successes), "failed", len(failures))
	return successes, nil
}

// convertGroup fills out[i] with the outcome of group[i] and returns once all have settled.
// A group holds at most groupSize files, which bounds the goroutines started here.
func (c *Converter) convertGroup(ctx context.Context, group []InputFile, target codec.Format, out []Outcome) {
	var wg sync.WaitGroup
	for i, file := range group {
		wg.Add(1)
		go func(i int, file InputFile) {
			defer wg.Done()
			out[i] = c.convertOne(ctx, file, target)
		}(i, file)
	}
	wg.Wait()
}

// convertOne never panics and always returns an Outcome.
func (c *Converter) convertOne(ctx context.Context, file InputFile, target codec.Format) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = Failure{Original: file, Err: &ConversionError{Name: file.Name, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	blob, err := c.adapter.Convert(ctx, file, target)
	if err != nil {
		return Failure{Original: file, Err: err}
	}
	return Success{Output: blob, Original: file}
}

func partition(outcomes []Outcome) (BatchResult, []Failure) {
	successes := make(BatchResult, 0, len(outcomes))
	var failures []Failure
	for _, o := range outcomes {
		switch v := o.(type) {
		case Success:
			successes = append(successes, v)
		case Failure:
			failures = append(failures, v)
		default:
			panic(fmt.Sprintf("converter: unexpected outcome %T", o))
		}
	}
	return successes, failures
}
