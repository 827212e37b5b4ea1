package neutralvoice

import (
	"regexp"
	"sort"
)

// Category groups blame patterns that share a rewrite strategy.
type Category string

const (
	Accusation      Category = "accusation"
	Directive       Category = "directive"
	Minimization    Category = "minimization"
	Interrogation   Category = "interrogation"
	RoleAttribution Category = "role_attribution"
)

// Categories lists every category in detection order.
var Categories = []Category{Accusation, Directive, Minimization, Interrogation, RoleAttribution}

// Severity is the aggregate blame level of a text.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// A clause runs to the next sentence or clause terminator.
const clause = `[^.!?,;]*`

const roles = `(?:dad|mom|mum|father|mother|husband|wife|partner|he|she)`

var patterns = map[Category][]*regexp.Regexp{
	Accusation: {
		regexp.MustCompile(`(?i)\byou(?:['’]ve| have)? (?:never|always|don['’]t|do not|didn['’]t|did not|won['’]t|will not|forgot|ignored|failed to|can['’]t be bothered)\b` + clause),
		regexp.MustCompile(`(?i)\byou(?:['’]re| are) (?:so |always |never |being )?(?:lazy|selfish|useless|careless|irresponsible|inconsiderate)\b` + clause),
		regexp.MustCompile(`(?i)\b(?:it['’]s|it is) (?:all )?your fault\b` + clause),
	},
	Directive: {
		regexp.MustCompile(`(?i)\byou (?:need to|have to|must|should|ought to|better)\b` + clause),
		regexp.MustCompile(`(?i)\b(?:just do it|do it now|stop being)\b` + clause),
	},
	Minimization: {
		regexp.MustCompile(`(?i)\b(?:it['’]s|it is) (?:just|only) (?:a|one|some)\b` + clause),
		regexp.MustCompile(`(?i)\b(?:not a big deal|no big deal|not that hard|how hard can it be)\b` + clause),
	},
	Interrogation: {
		regexp.MustCompile(`(?i)\bwhy (?:didn['’]t|don['’]t|can['’]t|won['’]t|haven['’]t|do|did|would|are|can) you\b` + clause + `[?.]?`),
		regexp.MustCompile(`(?i)\bhow (?:come|many times)\b` + clause + `[?.]?`),
	},
	RoleAttribution: {
		regexp.MustCompile(`(?i)\b` + roles + `\s+(?:never|always|doesn['’]t|does not|won['’]t|isn['’]t|can['’]t|forgets|ignores)\b` + clause),
	},
}

var harshOpener = regexp.MustCompile(`(?i)^\s*(?:you\b|why\b|` + roles + `\s+(?:never|always|doesn['’]t|does not)\b)`)

// Match is one blame span.
type Match struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
}

// Detection is the outcome of scanning a text for blame.
type Detection struct {
	Matches  []Match  `json:"matches"`
	Severity Severity `json:"severity"`
}

// Count returns the number of matches.
func (d Detection) Count() int {
	return len(d.Matches)
}

// DetectBlamePatterns scans text with every category's patterns. Matches
// from different categories may overlap.
func DetectBlamePatterns(text string) Detection {
	var matches []Match
	for _, cat := range Categories {
		for _, re := range patterns[cat] {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				matches = append(matches, Match{
					Category: cat,
					Text:     text[loc[0]:loc[1]],
					Start:    loc[0],
					End:      loc[1],
				})
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})
	return Detection{Matches: matches, Severity: severityFor(len(matches))}
}

func severityFor(n int) Severity {
	switch {
	case n == 0:
		return SeverityNone
	case n == 1:
		return SeverityMild
	case n <= 3:
		return SeverityModerate
	default:
		return SeverityHigh
	}
}

// nonOverlapping keeps the earliest, then longest, of overlapping matches.
func nonOverlapping(matches []Match) []Match {
	var out []Match
	end := -1
	for _, m := range matches {
		if m.Start < end {
			continue
		}
		out = append(out, m)
		end = m.End
	}
	return out
}
