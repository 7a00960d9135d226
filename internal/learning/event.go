// Package learning adjusts the weight vector from outcome feedback.
package learning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

// ErrUpdateRejected marks feedback that could not be applied. The weight
// vector is left unchanged.
var ErrUpdateRejected = errors.New("learning update rejected")

// Outcome is what happened after a match was shown.
type Outcome string

const (
	OutcomeHired       Outcome = "hired"
	OutcomeOffered     Outcome = "offered"
	OutcomeInterviewed Outcome = "interviewed"
	OutcomeRejected    Outcome = "rejected"
)

var outcomeTargets = map[Outcome]float64{
	OutcomeHired:       1.0,
	OutcomeOffered:     0.9,
	OutcomeInterviewed: 0.8,
	OutcomeRejected:    0.0,
}

// Outcomes lists the accepted outcomes, best first.
func Outcomes() []Outcome {
	return []Outcome{OutcomeHired, OutcomeOffered, OutcomeInterviewed, OutcomeRejected}
}

func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := outcomeTargets[o]; !ok {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}

// Target is the score a perfect model would have given this outcome.
func (o Outcome) Target() float64 { return outcomeTargets[o] }

// Success is the recalibration label: interviewed or better.
func (o Outcome) Success() bool {
	return o == OutcomeInterviewed || o == OutcomeOffered || o == OutcomeHired
}

// UserFeedback is an optional explicit rating. Rating and Confidence are in [0,1].
type UserFeedback struct {
	Rating     *float64 `json:"rating,omitempty" mapstructure:"rating" validate:"omitempty,min=0,max=1"`
	Confidence float64  `json:"confidence" mapstructure:"confidence" validate:"min=0,max=1"`
}

// FeedbackEvent reports the outcome of one candidate/job match.
type FeedbackEvent struct {
	ID           string        `json:"id" mapstructure:"id"`
	CandidateID  string        `json:"candidate_id" mapstructure:"candidate_id" validate:"required"`
	JobID        string        `json:"job_id" mapstructure:"job_id" validate:"required"`
	Outcome      Outcome       `json:"outcome" mapstructure:"outcome" validate:"required,oneof=hired offered interviewed rejected"`
	UserFeedback *UserFeedback `json:"user_feedback,omitempty" mapstructure:"user_feedback" validate:"omitempty"`
	Timestamp    time.Time     `json:"timestamp" mapstructure:"timestamp"`
}

// Confidence of the user feedback, 0 when there is none.
func (e FeedbackEvent) Confidence() float64 {
	if e.UserFeedback == nil {
		return 0
	}
	return e.UserFeedback.Confidence
}

// ExpectedScore is the outcome target, averaged with the user rating when one
// was given.
func (e FeedbackEvent) ExpectedScore() float64 {
	target := e.Outcome.Target()
	if e.UserFeedback != nil && e.UserFeedback.Rating != nil {
		return (target + *e.UserFeedback.Rating) / 2
	}
	return target
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Prepare validates the event and fills in the ID and timestamp when absent.
func (e *FeedbackEvent) Prepare(now time.Time) error {
	e.Outcome = Outcome(strings.ToLower(strings.TrimSpace(string(e.Outcome))))
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: malformed feedback: %w", ErrUpdateRejected, err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return nil
}

// Entry is a logged feedback event together with the match it refers to.
type Entry struct {
	Event       FeedbackEvent  `json:"event"`
	Components  weights.Vector `json:"components"`
	ActualScore float64        `json:"actual_score"`
	// WeightsVersion is the version the match was scored with.
	WeightsVersion uint64 `json:"weights_version"`
}
