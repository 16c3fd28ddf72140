package shortlist

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/profile"
	"github.com/spigell/shortlister/internal/store"
)

const (
	fieldCompany      = "Company"
	fieldRate         = "Preferred Rate"
	fieldAvailability = "Availability (hrs/wk)"
	fieldLocation     = "Location"

	notAvailable = "N/A"
)

// Word boundaries over Unicode letters and digits; \b only knows ASCII.
const (
	wordStart = `(?i)(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:[^\p{L}\p{N}_]|$)`
)

// wordMatcher matches any of the names as a whole word, ignoring case.
type wordMatcher struct {
	names    []string
	patterns []*regexp.Regexp
}

func newWordMatcher(names []string) wordMatcher {
	m := wordMatcher{names: names}
	for _, name := range names {
		m.patterns = append(m.patterns, regexp.MustCompile(wordStart+regexp.QuoteMeta(name)+wordEnd))
	}
	return m
}

func (m wordMatcher) match(text string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

type experienceCondition struct {
	minYears float64
	tier1    wordMatcher
	logger   *zap.Logger
}

func newExperience(minYears float64, tier1 []string, logger *zap.Logger) Condition {
	return &experienceCondition{minYears: minYears, tier1: newWordMatcher(tier1), logger: logger}
}

func (c *experienceCondition) Name() string { return "experience" }

func (c *experienceCondition) Check(p *profile.Profile) (bool, string) {
	years := TotalYears(p.Experience, c.logger)
	tier1 := c.workedTier1(p.Experience)

	return years >= c.minYears || tier1,
		fmt.Sprintf("Experience: %s years total; Tier-1: %s", formatNumber(years), yesNo(tier1))
}

func (c *experienceCondition) workedTier1(experience []map[string]any) bool {
	for _, entry := range experience {
		if c.tier1.match(store.Text(entry[fieldCompany])) {
			return true
		}
	}
	return false
}

func (c *experienceCondition) Status() Status {
	details := map[string]string{"min_years": formatNumber(c.minYears)}
	if len(c.tier1.names) > 0 {
		details["tier1_companies"] = strings.Join(c.tier1.names, ",")
	}
	return Status{Name: c.Name(), Details: details}
}

type compensationCondition struct {
	maxRate         float64
	minAvailability float64
	logger          *zap.Logger
}

func newCompensation(maxRate, minAvailability float64, logger *zap.Logger) Condition {
	return &compensationCondition{maxRate: maxRate, minAvailability: minAvailability, logger: logger}
}

func (c *compensationCondition) Name() string { return "compensation" }

// Check fails on missing data: a missing rate is infinite and missing availability is zero.
func (c *compensationCondition) Check(p *profile.Profile) (bool, string) {
	rate, ok := c.number(p.Salary, fieldRate)
	if !ok {
		rate = math.Inf(1)
	}
	availability, ok := c.number(p.Salary, fieldAvailability)
	if !ok {
		availability = 0
	}

	return rate <= c.maxRate && availability >= c.minAvailability,
		fmt.Sprintf("Compensation: Preferred Rate=%s <= $%s/h; Availability=%s >= %s h/wk",
			raw(p.Salary, fieldRate), formatNumber(c.maxRate),
			raw(p.Salary, fieldAvailability), formatNumber(c.minAvailability),
		)
}

// number decodes a numeric field, accepting numeric strings.
func (c *compensationCondition) number(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0, false
	}
	// WeakDecode reads "" as zero, which would pass the rate check.
	if s, isString := v.(string); isString {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		v = s
	}

	var out float64
	if err := mapstructure.WeakDecode(v, &out); err != nil || math.IsNaN(out) {
		c.logger.Debug("non-numeric compensation value",
			zap.String("field", key),
			zap.Any("value", v),
		)
		return 0, false
	}
	return out, true
}

func (c *compensationCondition) Status() Status {
	return Status{Name: c.Name(), Details: map[string]string{
		"max_rate":         formatNumber(c.maxRate),
		"min_availability": formatNumber(c.minAvailability),
	}}
}

type locationCondition struct {
	allowed wordMatcher
}

func newLocation(countries []string) Condition {
	return &locationCondition{allowed: newWordMatcher(countries)}
}

func (c *locationCondition) Name() string { return "location" }

func (c *locationCondition) Check(p *profile.Profile) (bool, string) {
	ok := c.allowed.match(store.Text(p.Personal[fieldLocation]))
	return ok, fmt.Sprintf("Location: %s in allowed set: %s", raw(p.Personal, fieldLocation), yesNo(ok))
}

func (c *locationCondition) Status() Status {
	if len(c.allowed.names) == 0 {
		return Status{Name: c.Name(), Reason: "no allowed countries configured, nobody passes"}
	}
	return Status{Name: c.Name(), Details: map[string]string{
		"countries": strings.Join(c.allowed.names, ","),
	}}
}

func raw(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return notAvailable
	}
	if f, isFloat := v.(float64); isFloat {
		return formatNumber(f)
	}
	return store.Text(v)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
