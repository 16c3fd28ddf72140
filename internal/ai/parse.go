package ai

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	maxSummaryLen   = 600
	maxIssuesLen    = 600
	maxFollowUpsLen = 1000
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionScore
	sectionIssues
	sectionFollowUps
)

var digits = regexp.MustCompile(`\d+`)

var headers = []struct {
	prefix  string
	section section
}{
	{"summary:", sectionSummary},
	{"score:", sectionScore},
	{"issues:", sectionIssues},
	{"follow-ups:", sectionFollowUps},
	{"follow ups:", sectionFollowUps},
}

// Parse reads the "Summary / Score / Issues / Follow-Ups" layout the prompt asks for.
// Unknown lines are ignored, except that plain lines continue the summary.
func Parse(text string) *Assessment {
	var (
		current section
		summary string
		issues  string
		score   int
		bullets []string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if next, rest, ok := header(line); ok {
			current = next
			switch next {
			case sectionSummary:
				summary = rest
			case sectionScore:
				score = parseScore(rest)
			case sectionIssues:
				issues = rest
			case sectionFollowUps:
				if item := bullet(rest); item != "" {
					bullets = append(bullets, item)
				}
			}
			continue
		}

		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") {
			if current == sectionFollowUps {
				if item := bullet(line); item != "" {
					bullets = append(bullets, item)
				}
			}
			continue
		}

		if current == sectionSummary {
			summary += " " + line
		}
	}

	var followUps string
	if len(bullets) > 0 {
		items := make([]string, len(bullets))
		for i, b := range bullets {
			items[i] = "• " + b
		}
		followUps = strings.Join(items, "\n")
	}

	return &Assessment{
		Summary:   truncate(summary, maxSummaryLen),
		Score:     score,
		Issues:    truncate(issues, maxIssuesLen),
		FollowUps: truncate(followUps, maxFollowUpsLen),
	}
}

func header(line string) (section, string, bool) {
	for _, h := range headers {
		if len(line) >= len(h.prefix) && strings.EqualFold(line[:len(h.prefix)], h.prefix) {
			return h.section, strings.TrimSpace(line[len(h.prefix):]), true
		}
	}
	return sectionNone, "", false
}

// parseScore takes the first run of digits, so "Rated 8/10" is 8.
func parseScore(value string) int {
	score, err := strconv.Atoi(digits.FindString(value))
	if err != nil {
		return 0
	}
	return score
}

func bullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-• "))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
