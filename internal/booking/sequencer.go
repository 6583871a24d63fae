package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"travel-concierge/internal/models"
)

var (
	ErrStepInvalid    = errors.New("STEP_INVALID")
	ErrSubmitRequired = errors.New("SUBMIT_REQUIRED")
	ErrFlowComplete   = errors.New("FLOW_COMPLETE")
	ErrAtInitialStep  = errors.New("AT_INITIAL_STEP")
	ErrNotOnReview    = errors.New("NOT_ON_REVIEW")
)

// StepError carries the per-field messages that kept a step from advancing.
type StepError struct {
	Step   StepID
	Fields map[string]string
}

func (e *StepError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s: step %s: %s", ErrStepInvalid, e.Step, strings.Join(keys, ","))
}

func (e *StepError) Unwrap() error {
	return ErrStepInvalid
}

// Sequencer tracks the active step of one wizard. It is not safe for
// concurrent use; callers hold the session lock.
type Sequencer struct {
	flow    Flow
	index   int
	initial int
}

// NewSequencer starts at the auth step for anonymous users and skips it for
// authenticated ones.
func NewSequencer(flow Flow, authenticated bool) *Sequencer {
	initial := 0
	if authenticated && len(flow.Steps) > 0 && flow.Steps[0].ID == StepAuth {
		initial = 1
	}
	return &Sequencer{flow: flow, index: initial, initial: initial}
}

func (s *Sequencer) Flow() Flow {
	return s.flow
}

func (s *Sequencer) Index() int {
	return s.index
}

func (s *Sequencer) InitialIndex() int {
	return s.initial
}

func (s *Sequencer) Current() Step {
	return s.flow.Steps[s.index]
}

func (s *Sequencer) IsTerminal() bool {
	return s.index == len(s.flow.Steps)-1
}

// Next advances one step if the active step is valid. Review is left only
// through Complete.
func (s *Sequencer) Next(d *models.BookingDraft, v *Validator) error {
	step := s.Current()
	switch {
	case s.IsTerminal():
		return ErrFlowComplete
	case step.ID == StepReview:
		return ErrSubmitRequired
	}
	if fields := step.Errors(d, v); len(fields) > 0 {
		return &StepError{Step: step.ID, Fields: fields}
	}
	s.index++
	return nil
}

// Back moves one step back without validating the step being left.
func (s *Sequencer) Back() error {
	if s.IsTerminal() {
		return ErrFlowComplete
	}
	if s.index <= s.initial {
		return ErrAtInitialStep
	}
	s.index--
	return nil
}

// Complete moves from review to confirmation after a successful submission.
func (s *Sequencer) Complete() error {
	if s.Current().ID != StepReview {
		return ErrNotOnReview
	}
	s.index++
	return nil
}
