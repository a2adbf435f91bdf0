package pda

import (
	"context"
	"fmt"

	"github.com/dhamidi/backscan/scan"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
)

// Exec runs the frame the session is suspended on: the semantic action of
// a reduction, generation or pre-EOF frame, or the inverse code of a
// reverse frame. An error from an action aborts the session.
func (s *Session) Exec() error {
	c := &Context{s: s}
	var err error
	switch s.await {
	case ResumeReduction:
		if s.actions != nil {
			err = s.actions.Reduce(c)
		}
	case ResumeGeneration:
		if s.actions != nil {
			err = s.actions.Generate(c)
		}
	case ResumePreEOF:
		if s.actions != nil {
			err = s.actions.PreEOF(c)
		}
	case ResumeReverse:
		entries := s.frame.entries
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].Undo(c)
		}
		s.frame.entries = nil
	}
	if err != nil {
		s.broken = fmt.Errorf("%s action for %s: %w", s.await, s.tables.Element(s.frame.ID).Name, err)
		return s.broken
	}
	return nil
}

// Run parses until the input is exhausted, runs dry, or the session is
// stopped. It executes every frame on the way. A read error of the input
// fails the session.
func (s *Session) Run(ctx context.Context) (Status, error) {
	if s.broken != nil {
		return StatusFailed, s.broken
	}
	if s.parseError {
		return StatusFailed, s.err
	}
	s.ctx = ctx
	s.halt = false
	defer func() { s.ctx = nil }()

	r := s.Step(ResumeStart)
	for r != ResumeDone {
		if err := s.Exec(); err != nil {
			return StatusFailed, err
		}
		r = s.Step(r)
	}
	if err := s.input.Err(); err != nil {
		s.broken = fmt.Errorf("input: %w", err)
		return StatusFailed, s.broken
	}
	return s.status()
}

func (s *Session) status() (Status, error) {
	switch {
	case s.parseError:
		return StatusFailed, s.err
	case s.stopParsing:
		return StatusDone, nil
	case s.triggerUndo:
		return StatusStopped, nil
	case s.ctx != nil && s.ctx.Err() != nil:
		return StatusStopped, s.ctx.Err()
	case s.eofSent:
		return StatusDone, nil
	case s.stalled:
		return StatusStalled, nil
	}
	return StatusStopped, nil
}

// Finish marks the end of input and parses the rest of it.
func (s *Session) Finish(ctx context.Context) (Status, error) {
	s.input.SetEOF()
	st, err := s.Run(ctx)
	if err == nil && st == StatusDone && !s.revert {
		s.commit()
	}
	return st, err
}

// UndoTo backtracks until Steps reports steps, pushing tokens back into
// the input and running the inverse code of every action undone. Steps
// before a commit made without Options.Revert cannot be undone; UndoTo
// then returns a *MisuseError and leaves the session as it was.
func (s *Session) UndoTo(ctx context.Context, steps int) (Status, error) {
	if steps >= s.steps {
		return StatusStopped, nil
	}
	if s.parseError {
		return StatusFailed, s.err
	}
	if steps < s.committed {
		return StatusStopped, &MisuseError{Msg: fmt.Sprintf("cannot undo to step %d, parsing was committed at step %d", steps, s.committed)}
	}
	log.Debugf("undoing from step %d to %d", s.steps, steps)
	s.numRetry++
	s.targetSteps = steps
	s.triggerUndo = true
	s.sc.SetUndo(true)
	defer func() {
		s.triggerUndo = false
		s.sc.SetUndo(false)
		s.targetSteps = -1
		if s.numRetry > 0 {
			s.numRetry--
		}
	}()
	return s.Run(ctx)
}

// Language is a grammar compiled to parser and scanner tables.
type Language interface {
	Tables
	Lexer() scan.Lexer
}

// Parse parses all of input and returns the resulting tree, which the
// caller owns.
func Parse(ctx context.Context, lang Language, store *tree.Store, input stream.Stream, opts Options) (*tree.Tree, error) {
	s := New(lang, lang.Lexer(), store, input, opts)
	defer s.Close()

	st, err := s.Finish(ctx)
	if err != nil {
		return nil, err
	}
	if st != StatusDone {
		return nil, fmt.Errorf("%s: parse %s", input.Name(), st)
	}
	t := s.Result()
	if t == nil {
		return nil, fmt.Errorf("%s: parse stopped before the start symbol", input.Name())
	}
	store.Upref(t)
	return t, nil
}
