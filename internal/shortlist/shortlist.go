// Package shortlist decides whether a compressed profile meets the hiring bar.
package shortlist

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/profile"
)

const (
	defaultMinYears        = 4
	defaultMaxRate         = 100
	defaultMinAvailability = 20

	reasonSeparator = " | "
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Criteria holds the thresholds of every condition.
type Criteria struct {
	Tier1Companies  []string `mapstructure:"tier1-companies"`
	Countries       []string `mapstructure:"countries"`
	MaxRate         float64  `mapstructure:"max-rate" validate:"gt=0"`
	MinAvailability float64  `mapstructure:"min-availability" validate:"gte=0"`
	MinYears        float64  `mapstructure:"min-years" validate:"gte=0"`
}

func DefaultCriteria() Criteria {
	return Criteria{
		MaxRate:         defaultMaxRate,
		MinAvailability: defaultMinAvailability,
		MinYears:        defaultMinYears,
	}
}

// Condition is a single named eligibility check.
type Condition interface {
	Name() string
	// Check reports whether the profile passes and explains the decision.
	Check(p *profile.Profile) (bool, string)
	Status() Status
}

// Status represents configuration information about a condition.
type Status struct {
	Name    string
	Reason  string
	Details map[string]string
}

// Verdict is the outcome of an evaluation. Reason always explains every condition.
type Verdict struct {
	Meets  bool   `json:"meets"`
	Reason string `json:"reason"`
}

type Evaluator struct {
	conditions []Condition
}

// NewEvaluator builds the experience, compensation and location conditions.
func NewEvaluator(c Criteria, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return New(
		newExperience(c.MinYears, clean(c.Tier1Companies), logger),
		newCompensation(c.MaxRate, c.MinAvailability, logger),
		newLocation(clean(c.Countries)),
	)
}

// New builds an evaluator from arbitrary conditions; all of them must pass.
func New(conditions ...Condition) *Evaluator {
	return &Evaluator{conditions: conditions}
}

// Evaluate runs every condition, even after one has failed, so the reason is complete.
func (e *Evaluator) Evaluate(p *profile.Profile) Verdict {
	if p == nil {
		p = &profile.Profile{}
	}

	meets := true
	reasons := make([]string, 0, len(e.conditions))
	for _, condition := range e.conditions {
		ok, reason := condition.Check(p)
		meets = meets && ok
		reasons = append(reasons, reason)
	}

	return Verdict{Meets: meets, Reason: strings.Join(reasons, reasonSeparator)}
}

// Describe returns status entries for the configured conditions.
func (e *Evaluator) Describe() []Status {
	statuses := make([]Status, 0, len(e.conditions))
	for _, condition := range e.conditions {
		statuses = append(statuses, condition.Status())
	}
	return statuses
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
