package neutralvoice

import (
	"regexp"
	"strings"
)

var (
	secondPerson = regexp.MustCompile(`(?i)\b(?:you|your|you['’]re|yourself)\b`)
	firstPlural  = regexp.MustCompile(`(?i)\b(?:we|our|us|ours|ourselves|let['’]s)\b`)
	systemWords  = regexp.MustCompile(`(?i)\b(?:system|process|routine|schedule|plan|workload|balance|split|setup|rotation)s?\b`)
)

// Rubric weights for MessageNeutrality.
const (
	blamePenalty        = 15
	secondPersonPenalty = 5
	secondPersonAllowed = 2
	questionBonus       = 5
	systemBonus         = 5
	systemBonusCap      = 10
	pluralBonus         = 5
	pluralBonusCap      = 10
)

// Report is the neutrality diagnosis of a text.
type Report struct {
	Score           int      `json:"score"`
	BlamePatterns   int      `json:"blamePatterns"`
	Severity        Severity `json:"severity"`
	Recommendations []string `json:"recommendations"`
}

// MessageNeutrality scores text from 0 to 100. Blame matches and
// second-person phrasing beyond two uses lower the score; a question,
// system vocabulary and first-person-plural phrasing raise it.
func MessageNeutrality(text string) Report {
	detection := DetectBlamePatterns(text)
	blame := detection.Count()
	you := len(secondPerson.FindAllString(text, -1))
	we := len(firstPlural.FindAllString(text, -1))
	sys := len(systemWords.FindAllString(text, -1))
	question := strings.Contains(text, "?")

	score := 100 - blame*blamePenalty
	if you > secondPersonAllowed {
		score -= (you - secondPersonAllowed) * secondPersonPenalty
	}
	if question {
		score += questionBonus
	}
	score += min(sys*systemBonus, systemBonusCap)
	score += min(we*pluralBonus, pluralBonusCap)
	score = max(0, min(100, score))

	var recs []string
	if blame > 0 {
		recs = append(recs, "Describe what is happening with the routine instead of what a person did")
	}
	if you > secondPersonAllowed {
		recs = append(recs, "Use fewer second-person phrases")
	}
	if !question {
		recs = append(recs, "Invite collaboration with an open question")
	}
	if we == 0 {
		recs = append(recs, "Use shared language such as \"we\" or \"our\"")
	}
	if sys == 0 {
		recs = append(recs, "Frame the issue around systems or routines rather than people")
	}

	return Report{
		Score:           score,
		BlamePatterns:   blame,
		Severity:        detection.Severity,
		Recommendations: recs,
	}
}
