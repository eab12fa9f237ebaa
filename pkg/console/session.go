// Package console drives a calculator session: prompt, read, evaluate, print.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// Defaults used when no option overrides them
const (
	DefaultPrompt       = ">"
	DefaultResultMarker = "="
	DefaultErrorPrefix  = "Error : "
)

// Recorder stores the transcript of evaluated statements.
// err is nil for statements that produced a value.
type Recorder interface {
	RecordStatement(ctx context.Context, sessionID string, seq int, text string, value float64, err error) error
}

// Option configures a Session
type Option func(*Session)

// WithRecorder sends every evaluated statement to r
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithPrompt sets the marker printed before each read
func WithPrompt(p string) Option {
	return func(s *Session) { s.prompt = p }
}

// WithResultMarker sets the marker printed in front of each result
func WithResultMarker(m string) Option {
	return func(s *Session) { s.resultMarker = m }
}

// Session is one calculator conversation with its own variables
type Session struct {
	id           string
	ev           *calc.Evaluator
	out          Output
	recorder     Recorder
	prompt       string
	resultMarker string
	seq          int
}

// NewSession creates a session reading statements from in.
// pi and e are predeclared.
func NewSession(id string, in io.Reader, out Output, opts ...Option) *Session {
	s := &Session{
		id:           id,
		ev:           calc.NewEvaluator(calc.NewTokenStream(in), calc.NewPredeclaredTable()),
		out:          out,
		prompt:       DefaultPrompt,
		resultMarker: DefaultResultMarker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Variables returns a snapshot of the session's variables
func (s *Session) Variables() []calc.Variable {
	return s.ev.Symbols().Variables()
}

// Run evaluates statements until quit, end of input or a fatal error.
// Statement errors are reported and the loop resumes at the next statement.
func (s *Session) Run(ctx context.Context) error {
	ts := s.ev.Tokens()
	logger.Info(logger.AreaConsole, "session %s started", s.id)

	for {
		if err := ctx.Err(); err != nil {
			logger.Info(logger.AreaConsole, "session %s cancelled", s.id)
			return err
		}

		s.out.Prompt(s.prompt)

		t, err := ts.Get()
		for err == nil && t.Is(calc.StatementEnd) {
			t, err = ts.Get()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.finish("end of input")
			}
			if calc.IsStatementError(err) {
				s.fail(ctx, err)
				continue
			}
			return fmt.Errorf("session %s: %w", s.id, err)
		}

		switch t.Kind {
		case calc.KindQuit:
			return s.finish("quit")
		case calc.KindHelp:
			ts.TakeText()
			s.out.Help(calc.HelpText)
			continue
		}

		if err := ts.Putback(t); err != nil {
			s.fail(ctx, err)
			continue
		}

		value, err := s.ev.Statement()
		switch {
		case err == nil:
			s.out.Result(s.resultMarker, value)
			s.record(ctx, ts.TakeText(), value, nil)
		case calc.IsStatementError(err):
			s.fail(ctx, err)
		case errors.Is(err, io.EOF):
			// input ended inside a statement
			return s.finish("end of input")
		default:
			return fmt.Errorf("session %s: %w", s.id, err)
		}
	}
}

// fail reports a statement error and skips to the next statement
func (s *Session) fail(ctx context.Context, err error) {
	s.out.Error(err)
	logger.Debug(logger.AreaConsole, "session %s: %s", s.id, calc.ErrorCode(err))

	ts := s.ev.Tokens()
	if ignoreErr := ts.Ignore(calc.StatementEnd); ignoreErr != nil {
		logger.Warn(logger.AreaConsole, "session %s: resync failed: %v", s.id, ignoreErr)
	}
	s.record(ctx, ts.TakeText(), 0, err)
}

func (s *Session) record(ctx context.Context, text string, value float64, err error) {
	s.seq++
	if s.recorder == nil {
		return
	}
	if recErr := s.recorder.RecordStatement(ctx, s.id, s.seq, text, value, err); recErr != nil {
		logger.Warn(logger.AreaConsole, "session %s: record statement %d: %v", s.id, s.seq, recErr)
	}
}

func (s *Session) finish(reason string) error {
	s.out.Done()
	logger.Info(logger.AreaConsole, "session %s finished (%s) after %d statements", s.id, reason, s.seq)
	return nil
}
