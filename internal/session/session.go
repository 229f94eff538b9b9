// Package session keeps the state of one conversion run: the files waiting to be
// converted, the chosen target format and the most recent batch result.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
	"heic_converter/internal/packager"
)

// ErrNothingConverted is returned by Deliver when there is no result to package.
var ErrNothingConverted = errors.New("nothing has been converted yet")

// Session is safe for concurrent use; operations are serialized.
type Session struct {
	mu         sync.Mutex
	converter  *converter.Converter
	dispatcher *packager.Dispatcher

	target  codec.Format
	pending []converter.InputFile
	result  converter.BatchResult
}

// New creates an empty Session converting towards target.
func New(conv *converter.Converter, disp *packager.Dispatcher, target codec.Format) *Session {
	return &Session{converter: conv, dispatcher: disp, target: target}
}

// Add appends files to the pending set. Each file's Index is set to its position in the set.
func (s *Session) Add(files ...converter.InputFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		f.Index = len(s.pending)
		s.pending = append(s.pending, f)
	}
	slog.Debug("Files added", "added", len(files), "pending", len(s.pending))
}

// Pending returns a copy of the files waiting to be converted.
func (s *Session) Pending() []converter.InputFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]converter.InputFile, len(s.pending))
	copy(out, s.pending)
	return out
}

// Target returns the current target format.
func (s *Session) Target() codec.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// SetTarget changes the target format. A different target discards the current result.
func (s *Session) SetTarget(f codec.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == s.target {
		return
	}
	s.target = f
	if s.result != nil {
		slog.Debug("Target changed, discarding converted result", "target", f)
	}
	s.result = nil
}

// Result returns the most recent batch result, or nil.
func (s *Session) Result() converter.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Convert runs a batch over the pending files. On success the new result replaces
// the previous one. On failure the previous result is discarded.
func (s *Session) Convert(ctx context.Context) (converter.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = nil
	result, err := s.converter.ConvertBatch(ctx, s.pending, s.target)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		s.result = result
	}
	return result, nil
}

// Deliver packages the current result with mode. A failed delivery keeps the
// result so Deliver can be called again.
func (s *Session) Deliver(ctx context.Context, mode packager.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.result) == 0 {
		return ErrNothingConverted
	}
	if err := s.dispatcher.Deliver(ctx, s.result, s.target, mode); err != nil {
		slog.Error("Delivery failed, converted files kept", "mode", mode, "error", err)
		return err
	}
	return nil
}

// Reset clears the pending files and the result. The target is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.result = nil
}
