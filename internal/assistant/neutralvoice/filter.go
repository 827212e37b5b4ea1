// Package neutralvoice rewrites outbound text so it carries no
// person-directed blame and always invites collaboration.
//
// Neutralize runs five stages in order: detect, rewrite, system focus,
// collaboration guarantee and gentle opening. Each stage is exported so its
// guarantee can be checked on its own.
package neutralvoice

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
)

// Context supplies placeholder values. Empty fields fall back to the
// package defaults.
type Context struct {
	Person string
	Task   string
	Role   string
}

type Filter struct {
	mu     sync.Mutex
	rng    *rand.Rand
	bank   TemplateBank
	logger logger.Logger
}

type Option func(*Filter)

// WithRandSource makes template choice reproducible.
func WithRandSource(src rand.Source) Option {
	return func(f *Filter) { f.rng = rand.New(src) }
}

// WithTemplates replaces the default template bank. Categories missing from
// bank keep their defaults.
func WithTemplates(bank TemplateBank) Option {
	return func(f *Filter) {
		merged := TemplateBank{}
		for cat, list := range DefaultTemplates {
			merged[cat] = list
		}
		for cat, list := range bank {
			if len(list) > 0 {
				merged[cat] = list
			}
		}
		f.bank = merged
	}
}

func New(log logger.Logger, opts ...Option) *Filter {
	f := &Filter{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		bank:   DefaultTemplates,
		logger: log.With(map[string]interface{}{"component": "neutralvoice"}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Neutralize returns text with blame removed, a collaborative close and a
// gentle opening. Blank text is returned unchanged.
func (f *Filter) Neutralize(text string, c Context) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	detection := DetectBlamePatterns(text)
	out := f.Rewrite(text, detection, c)
	out = FocusOnSystem(out)
	out = f.EnsureCollaboration(out)
	out = f.EnsureGentleOpening(out)

	if detection.Severity != SeverityNone {
		f.logger.Debug("Neutralized outbound text", map[string]interface{}{
			"severity": string(detection.Severity),
			"matches":  detection.Count(),
		})
	}
	return out
}

// Rewrite replaces every non-overlapping match in detection with a template
// of its category.
func (f *Filter) Rewrite(text string, detection Detection, c Context) string {
	matches := nonOverlapping(detection.Matches)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		tmpl := fill(f.pick(f.bank[m.Category]), c, m.Text)
		if atSentenceStart(text, m.Start) {
			tmpl = upperFirst(tmpl)
		} else {
			tmpl = lowerFirst(tmpl)
		}
		b.WriteString(tmpl)
		last = m.End
		metrics.NeutralVoiceRewrites.WithLabelValues(string(m.Category)).Inc()
	}
	b.WriteString(text[last:])
	return b.String()
}

type systemFocus struct {
	re   *regexp.Regexp
	repl string
}

var systemFocusRules = []systemFocus{
	{regexp.MustCompile(`(?i)\b[\w']+ (?:isn['’]t|is not|aren['’]t|are not) helping (?:out )?enough\b`), "the current split isn't working well for everyone"},
	{regexp.MustCompile(`(?i)\b[\w']+ (?:doesn['’]t|does not|don['’]t|do not) do (?:enough|anything|their share)\b`), "the workload may not be balanced right now"},
	{regexp.MustCompile(`(?i)\b[\w']+ (?:is|are|isn['’]t|is not) (?:not )?pulling (?:their|his|her) weight\b`), "the load isn't shared evenly yet"},
	{regexp.MustCompile(`(?i)\bnot doing (?:their|his|her) (?:part|share)\b`), "the current split of tasks could use a look"},
	{regexp.MustCompile(`(?i)\b(?:his|her|their) fault\b`), "a gap in the system"},
}

// FocusOnSystem turns residual person-deficit phrasing into system-deficit
// phrasing.
func FocusOnSystem(text string) string {
	for _, rule := range systemFocusRules {
		spans := rule.re.FindAllStringIndex(text, -1)
		if spans == nil {
			continue
		}
		var b strings.Builder
		last := 0
		for _, span := range spans {
			b.WriteString(text[last:span[0]])
			if atSentenceStart(text, span[0]) {
				b.WriteString(upperFirst(rule.repl))
			} else {
				b.WriteString(rule.repl)
			}
			last = span[1]
		}
		b.WriteString(text[last:])
		text = b.String()
	}
	return text
}

var collaborativeMarker = regexp.MustCompile(`(?i)\b(?:together|let['’]s|let us|we could|we can|shall we|how might we|what if we|as a team)\b`)

// HasCollaboration reports whether text asks a question or uses a
// collaborative marker.
func HasCollaboration(text string) bool {
	return strings.Contains(text, "?") || collaborativeMarker.MatchString(text)
}

// EnsureCollaboration appends a collaborative question unless one is present.
func (f *Filter) EnsureCollaboration(text string) string {
	if HasCollaboration(text) {
		return text
	}
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if !strings.HasSuffix(trimmed, ".") && !strings.HasSuffix(trimmed, "!") {
		trimmed += "."
	}
	return trimmed + " " + f.pick(collaborationTemplates)
}

// HasHarshOpening reports whether the first clause of text opens harshly.
func HasHarshOpening(text string) bool {
	return harshOpener.MatchString(firstClause(text))
}

// EnsureGentleOpening prepends a gentle start when the first clause is harsh.
func (f *Filter) EnsureGentleOpening(text string) string {
	if !HasHarshOpening(text) {
		return text
	}
	return f.pick(gentleStarts) + " " + upperFirst(strings.TrimLeftFunc(text, unicode.IsSpace))
}

func (f *Filter) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return options[f.rng.Intn(len(options))]
}

var taskHint = regexp.MustCompile(`(?i)\b(?:with|about|for)\s+((?:the|this|that|our|my)\s+[a-z]+|this|that)\b`)

func fill(tmpl string, c Context, span string) string {
	person, task, role := c.Person, c.Task, c.Role
	if person == "" {
		person = DefaultPerson
	}
	if task == "" {
		if m := taskHint.FindStringSubmatch(span); m != nil {
			task = strings.ToLower(m[1])
		} else {
			task = DefaultTask
		}
	}
	if role == "" {
		role = DefaultRole
	}
	return strings.NewReplacer("{person}", person, "{task}", task, "{role}", role).Replace(tmpl)
}

func firstClause(text string) string {
	if i := strings.IndexAny(text, ".!?,;"); i >= 0 {
		return text[:i]
	}
	return text
}

func atSentenceStart(text string, idx int) bool {
	before := strings.TrimRightFunc(text[:idx], unicode.IsSpace)
	if before == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(before)
	return r == '.' || r == '!' || r == '?'
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
