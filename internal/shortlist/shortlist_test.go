package shortlist

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/shortlister/internal/profile"
	"github.com/spigell/shortlister/internal/store"
)

func freezeNow(t *testing.T, at time.Time) {
	t.Helper()
	original := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = original })
}

func TestParseDatePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		year  int
		month time.Month
		day   int
		ok    bool
	}{
		{input: "2020-01-31", year: 2020, month: time.January, day: 31, ok: true},
		{input: "2020/01/31", year: 2020, month: time.January, day: 31, ok: true},
		{input: "05-06-2020", year: 2020, month: time.June, day: 5, ok: true},
		{input: "31/01/2020", year: 2020, month: time.January, day: 31, ok: true},
		{input: " 2020-1-5 ", year: 2020, month: time.January, day: 5, ok: true},
		{input: "", ok: false},
		{input: "yesterday", ok: false},
		{input: "2020-13-01", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.input)
		if ok != tt.ok {
			t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if got.Year() != tt.year || got.Month() != tt.month || got.Day() != tt.day {
			t.Fatalf("ParseDate(%q) = %s", tt.input, got.Format(time.DateOnly))
		}
	}
}

func TestTotalYears(t *testing.T) {
	freezeNow(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	years := TotalYears([]map[string]any{{"Start": "2015-01-01", "End": "2020-01-01"}}, nil)
	if math.Abs(years-5.0) > 0.02 {
		t.Fatalf("expected about 5 years, got %v", years)
	}

	ongoing := TotalYears([]map[string]any{{"Start": "2022-01-01"}}, nil)
	if ongoing != 2 {
		t.Fatalf("expected ongoing entry to run until now, got %v", ongoing)
	}

	freezeNow(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	if later := TotalYears([]map[string]any{{"Start": "2022-01-01", "End": ""}}, nil); later < ongoing {
		t.Fatalf("ongoing experience must not decrease over time: %v < %v", later, ongoing)
	}

	zero := TotalYears([]map[string]any{
		{"End": "2020-01-01"},
		{"Start": "garbage", "End": "2020-01-01"},
		{"Start": "2019-01-01", "End": "garbage"},
		{"Start": "2020-01-01", "End": "2019-01-01"},
	}, nil)
	if zero != 0 {
		t.Fatalf("expected unusable entries to contribute nothing, got %v", zero)
	}
}

func TestTotalYearsLongSpan(t *testing.T) {
	years := TotalYears([]map[string]any{{"Start": "1500-01-01", "End": "2000-01-01"}}, nil)
	if years != 499.99 {
		t.Fatalf("expected 499.99 years, got %v", years)
	}
}

func TestTotalYearsLogsBadDates(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	TotalYears([]map[string]any{{"Start": "2019-01-01", "End": "someday"}}, zap.New(core))

	entries := observed.FilterMessage("could not parse end date").All()
	if len(entries) != 1 {
		t.Fatalf("expected a debug entry for the bad end date, got %d", len(entries))
	}
	if entries[0].ContextMap()["value"] != "someday" {
		t.Fatalf("expected the offending value in the log, got %v", entries[0].ContextMap())
	}
}

func TestTier1WholeWordMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		brands  []string
		company string
		expect  bool
	}{
		{name: "case insensitive", brands: []string{"globex"}, company: "Globex", expect: true},
		{name: "suffix is not a word boundary", brands: []string{"Globex"}, company: "GlobexCorp", expect: false},
		{name: "separate word", brands: []string{"Globex"}, company: "Globex Corp", expect: true},
		{name: "punctuation is a boundary", brands: []string{"Globex"}, company: "Acme/Globex, Inc.", expect: true},
		{name: "regex characters are literal", brands: []string{"A.B"}, company: "AxB", expect: false},
		{name: "no brands", brands: nil, company: "Globex", expect: false},
		{name: "non-ascii first letter", brands: []string{"Überall"}, company: "Überall GmbH", expect: true},
		{name: "non-ascii last letter", brands: []string{"Café"}, company: "Le Café, Paris", expect: true},
		{name: "non-ascii letter continues the word", brands: []string{"Überall"}, company: "Überallé", expect: false},
		{name: "non-ascii prefix continues the word", brands: []string{"berall"}, company: "Überall", expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &experienceCondition{tier1: newWordMatcher(tt.brands)}
			got := c.workedTier1([]map[string]any{{"Company": tt.company}})
			if got != tt.expect {
				t.Fatalf("workedTier1(%q, %v) = %v, want %v", tt.company, tt.brands, got, tt.expect)
			}
		})
	}
}

func canadianProfile(rate any) *profile.Profile {
	return &profile.Profile{
		Personal: map[string]any{"Location": "Canada"},
		Salary:   map[string]any{"Preferred Rate": rate, "Availability (hrs/wk)": float64(30)},
		Experience: []map[string]any{
			{"Company": "Initech", "Start": "2015-01-01", "End": "2020-01-01"},
		},
	}
}

func TestEvaluateVerdict(t *testing.T) {
	freezeNow(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	criteria := DefaultCriteria()
	criteria.Countries = []string{" Canada ", ""}
	evaluator := NewEvaluator(criteria, nil)

	passing := evaluator.Evaluate(canadianProfile(float64(50)))
	if !passing.Meets {
		t.Fatalf("expected profile to be shortlisted: %s", passing.Reason)
	}
	if parts := strings.Split(passing.Reason, " | "); len(parts) != 3 {
		t.Fatalf("expected three explanations, got %q", passing.Reason)
	}
	if !strings.HasPrefix(passing.Reason, "Experience: 5 years total; Tier-1: no") {
		t.Fatalf("unexpected experience explanation: %q", passing.Reason)
	}

	failing := evaluator.Evaluate(canadianProfile(float64(150)))
	if failing.Meets {
		t.Fatalf("expected rate 150 to fail")
	}
	if !strings.Contains(failing.Reason, "Compensation: Preferred Rate=150 <= $100/h; Availability=30 >= 20 h/wk") {
		t.Fatalf("expected compensation explanation, got %q", failing.Reason)
	}
	if !strings.Contains(failing.Reason, "Location: Canada in allowed set: yes") {
		t.Fatalf("expected location explanation, got %q", failing.Reason)
	}
}

func TestLocationMatching(t *testing.T) {
	tests := []struct {
		name      string
		countries []string
		location  string
		expect    bool
	}{
		{name: "non-ascii first letter", countries: []string{"Österreich"}, location: "Wien, Österreich", expect: true},
		{name: "case folding", countries: []string{"åland"}, location: "Mariehamn, Åland", expect: true},
		{name: "hyphenated region", countries: []string{"Île-de-France"}, location: "Paris (Île-de-France)", expect: true},
		{name: "part of a longer word", countries: []string{"Österreich"}, location: "Niederösterreichs", expect: false},
		{name: "ascii country", countries: []string{"Canada"}, location: "Toronto, Canada", expect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newLocation(tt.countries)
			ok, reason := c.Check(&profile.Profile{Personal: map[string]any{"Location": tt.location}})
			if ok != tt.expect {
				t.Fatalf("Check(%q, %v) = %v (%s), want %v", tt.location, tt.countries, ok, reason, tt.expect)
			}
		})
	}
}

func TestEvaluateNonASCIINames(t *testing.T) {
	criteria := DefaultCriteria()
	criteria.Countries = []string{"Österreich"}
	criteria.Tier1Companies = []string{"Überall"}

	verdict := NewEvaluator(criteria, nil).Evaluate(&profile.Profile{
		Personal:   map[string]any{"Location": "Wien, Österreich"},
		Salary:     map[string]any{"Preferred Rate": float64(60), "Availability (hrs/wk)": float64(40)},
		Experience: []map[string]any{{"Company": "Überall GmbH", "Start": "2023-01-01", "End": "2023-06-01"}},
	})

	if !verdict.Meets {
		t.Fatalf("expected shortlisting, got %q", verdict.Reason)
	}
	if !strings.Contains(verdict.Reason, "Tier-1: yes") || !strings.Contains(verdict.Reason, "in allowed set: yes") {
		t.Fatalf("unexpected reason %q", verdict.Reason)
	}
}

func TestCompensationDecoding(t *testing.T) {
	freezeNow(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	criteria := DefaultCriteria()
	criteria.Countries = []string{"Canada"}
	evaluator := NewEvaluator(criteria, nil)

	tests := []struct {
		name   string
		salary map[string]any
		expect bool
	}{
		{name: "numeric strings", salary: map[string]any{"Preferred Rate": " 80 ", "Availability (hrs/wk)": "25"}, expect: true},
		{name: "missing rate", salary: map[string]any{"Availability (hrs/wk)": 40}, expect: false},
		{name: "empty rate", salary: map[string]any{"Preferred Rate": "", "Availability (hrs/wk)": 40}, expect: false},
		{name: "non numeric rate", salary: map[string]any{"Preferred Rate": "cheap", "Availability (hrs/wk)": 40}, expect: false},
		{name: "missing availability", salary: map[string]any{"Preferred Rate": 10}, expect: false},
		{name: "boundaries are inclusive", salary: map[string]any{"Preferred Rate": 100, "Availability (hrs/wk)": 20}, expect: true},
	}

	for _, tt := range tests {
		p := canadianProfile(nil)
		p.Salary = tt.salary
		if got := evaluator.Evaluate(p); got.Meets != tt.expect {
			t.Fatalf("%s: meets = %v, want %v (%s)", tt.name, got.Meets, tt.expect, got.Reason)
		}
	}

	missing := evaluator.Evaluate(&profile.Profile{})
	if !strings.Contains(missing.Reason, "Preferred Rate=N/A") || !strings.Contains(missing.Reason, "Location: N/A in allowed set: no") {
		t.Fatalf("expected N/A placeholders, got %q", missing.Reason)
	}
}

func TestTier1OverridesTenure(t *testing.T) {
	criteria := DefaultCriteria()
	criteria.Tier1Companies = []string{"Globex"}
	criteria.Countries = []string{"Canada"}

	p := canadianProfile(float64(50))
	p.Experience = []map[string]any{{"Company": "Globex", "Start": "2023-01-01", "End": "2023-06-01"}}

	verdict := NewEvaluator(criteria, nil).Evaluate(p)
	if !verdict.Meets {
		t.Fatalf("expected tier-1 experience to pass: %s", verdict.Reason)
	}
	if !strings.Contains(verdict.Reason, "Tier-1: yes") {
		t.Fatalf("unexpected reason %q", verdict.Reason)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	criteria := DefaultCriteria()
	criteria.Tier1Companies = []string{"Globex", "Initech"}

	statuses := NewEvaluator(criteria, zap.NewNop()).Describe()
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "experience" || statuses[0].Details["tier1_companies"] != "Globex,Initech" {
		t.Fatalf("unexpected experience status: %+v", statuses[0])
	}
	if statuses[1].Details["max_rate"] != "100" {
		t.Fatalf("unexpected compensation status: %+v", statuses[1])
	}
	if statuses[2].Reason == "" {
		t.Fatalf("expected location status to warn about the empty country list")
	}
}

func TestCreateLead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	schema := profile.DefaultSchema()
	mem := store.NewMemory()
	writer := NewLeadWriter(mem, schema, nil)

	if err := writer.CreateLead(ctx, "recA", `{"personal":{}}`, "reason"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	leads, err := mem.List(ctx, schema.Tables.Shortlist, store.All)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(leads))
	}
	fields := leads[0].Fields
	if store.Text(fields["Applicant"]) != "recA" || fields["Score Reason"] != "reason" || fields["Compressed JSON"] != `{"personal":{}}` {
		t.Fatalf("unexpected lead fields: %v", fields)
	}

	boom := errors.New("rejected")
	mem.Fail = func(op, _ string) error {
		if op == store.OpCreate {
			return boom
		}
		return nil
	}
	if err := writer.CreateLead(ctx, "recA", "{}", "reason"); !errors.Is(err, boom) {
		t.Fatalf("expected store error to be returned, got %v", err)
	}
}
