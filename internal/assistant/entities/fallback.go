package entities

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"family-assistant/internal/models"
)

const properName = `([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)*)`

var (
	namedPhrase  = regexp.MustCompile(`\b(?:named|called)\s+` + properName)
	nameIsPhrase = regexp.MustCompile(`(?i:\b(?:her|his|their)\s+name\s+is)\s+` + properName)
	forPerson    = regexp.MustCompile(`\bfor\s+([A-Z][a-zA-Z'-]+)`)
	assignPhrase = regexp.MustCompile(`(?i:\bassign(?:ed)?\s+(?:it\s+|this\s+)?to)\s+([A-Z][a-zA-Z'-]+)`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,2}[\s.-]?)?(?:\(\d{3}\)|\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`)
	wordPattern  = regexp.MustCompile(`[A-Za-z][A-Za-z'-]*`)
	atPlace      = regexp.MustCompile(`\bat\s+(?:the\s+)?([A-Z][\w'&-]*(?:\s+[A-Z][\w'&-]*)*)`)
	eventNoun    = regexp.MustCompile(`(?i)\b((?:[a-z]+[ -])?(?:appointment|practice|game|lesson|recital|party|checkup|check-up|conference|meeting|class|visit|tournament|rehearsal|playdate|sleepover))\b`)
	subjectIs    = regexp.MustCompile(`\b([A-Z][a-z]+)(?:'s)?\s+(?:is|weighs|was|measured|height|weight)\b`)
	measureValue = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(centimeters?|cm|inches|inch|in|feet|foot|ft|pounds?|lbs?|kilograms?|kgs?|ounces?|oz)\b`)
	highPriority = regexp.MustCompile(`(?i)\b(?:urgent|asap|important|high priority)\b`)
	lowPriority  = regexp.MustCompile(`(?i)\b(?:low priority|whenever|no rush)\b`)
)

// taskTitlePatterns capture the task wording after a lead-in, in order.
var taskTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bremind\s+(?:me|us)\s+to\s+(.+)`),
	regexp.MustCompile(`(?i)\b(?:task|to-?do)\s*(?:to|:)\s*(.+)`),
	regexp.MustCompile(`(?i)\bmark\s+(?:the\s+)?(.+?)\s+as\s+(?:done|complete|completed|finished)`),
	regexp.MustCompile(`(?i)\b(?:finished|completed|done with|check off)\s+(?:the\s+)?(.+)`),
	regexp.MustCompile(`(?i)\b(?:need|needs|have)\s+to\s+(.+)`),
	regexp.MustCompile(`(?i)^\s*(?:please\s+)?add\s+(.+?)\s+to\s+(?:the\s+|my\s+|our\s+)?(?:list|tasks|to-?do list)`),
}

// capitalStopwords are capitalized words that never start a person's name.
var capitalStopwords = map[string]bool{
	"i": true, "can": true, "could": true, "please": true, "add": true, "schedule": true,
	"book": true, "create": true, "remind": true, "our": true, "my": true, "the": true,
	"we": true, "hey": true, "hi": true, "hello": true, "new": true, "dr": true, "mr": true,
	"mrs": true, "ms": true, "she": true, "he": true, "they": true, "her": true, "his": true,
	"today": true, "tomorrow": true, "next": true, "this": true,
}

var articles = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true, "her": true, "his": true,
	"their": true, "for": true, "to": true, "new": true,
}

var units = map[string]string{
	"centimeter": "cm", "centimeters": "cm", "cm": "cm",
	"inch": "in", "inches": "in", "in": "in",
	"foot": "ft", "feet": "ft", "ft": "ft",
	"pound": "lb", "pounds": "lb", "lb": "lb", "lbs": "lb",
	"kilogram": "kg", "kilograms": "kg", "kg": "kg", "kgs": "kg",
	"ounce": "oz", "ounces": "oz", "oz": "oz",
}

// applyFallback fills empty bundle fields from deterministic patterns and
// reports which fields it filled. Fields already set are never replaced.
func applyFallback(b *models.EntityBundle, message string, today time.Time, fc *models.FamilyContext) []string {
	f := &filler{}
	switch b.EntityType {
	case models.EntityProvider:
		fallbackProvider(f, b.Provider, message, fc)
	case models.EntityEvent:
		fallbackEvent(f, b.Event, message, today, fc)
	case models.EntityTask:
		fallbackTask(f, b.Task, message, today, fc)
	case models.EntityGrowth:
		fallbackGrowth(f, b.Growth, message, today, fc)
	}
	return f.filled
}

type filler struct {
	filled []string
}

func (f *filler) set(name string, dst *string, value string) {
	value = strings.TrimSpace(value)
	if *dst != "" || value == "" {
		return
	}
	*dst = value
	f.filled = append(f.filled, name)
}

func fallbackProvider(f *filler, p *models.ProviderFields, message string, fc *models.FamilyContext) {
	child := childName(message, fc)
	f.set("childName", &p.ChildName, child)
	f.set("name", &p.Name, providerName(message, child, fc))
	f.set("type", &p.Type, matchRule(providerTypeRules, message))
	f.set("email", &p.Email, emailPattern.FindString(message))
	f.set("phone", &p.Phone, phonePattern.FindString(message))
}

func fallbackEvent(f *filler, e *models.EventFields, message string, today time.Time, fc *models.FamilyContext) {
	f.set("title", &e.Title, eventTitle(message))
	if date, ok := FindDate(message, today); ok {
		f.set("date", &e.Date, date)
	}
	if at, ok := FindTime(message); ok {
		f.set("time", &e.Time, at)
	}
	if m := atPlace.FindStringSubmatch(message); m != nil {
		f.set("location", &e.Location, m[1])
	}
	f.set("eventType", &e.EventType, matchRule(eventTypeRules, e.Title+" "+message))
	f.set("childName", &e.ChildName, childName(message, fc))
}

func fallbackTask(f *filler, t *models.TaskFields, message string, today time.Time, fc *models.FamilyContext) {
	f.set("title", &t.Title, taskTitle(message))
	if m := assignPhrase.FindStringSubmatch(message); m != nil {
		f.set("assignee", &t.Assignee, m[1])
	} else if m := forPerson.FindStringSubmatch(message); m != nil && !isStopword(m[1]) {
		f.set("assignee", &t.Assignee, m[1])
	}
	if date, ok := FindDate(message, today); ok {
		f.set("dueDate", &t.DueDate, date)
	}
	switch {
	case highPriority.MatchString(message):
		f.set("priority", &t.Priority, "high")
	case lowPriority.MatchString(message):
		f.set("priority", &t.Priority, "low")
	}
}

func fallbackGrowth(f *filler, g *models.GrowthFields, message string, today time.Time, fc *models.FamilyContext) {
	child := childName(message, fc)
	if child == "" {
		if m := subjectIs.FindStringSubmatch(message); m != nil && !isStopword(m[1]) {
			child = m[1]
		}
	}
	f.set("childName", &g.ChildName, child)

	if m := measureValue.FindStringSubmatch(message); m != nil {
		unit := units[strings.ToLower(m[2])]
		f.set("value", &g.Value, m[1])
		f.set("unit", &g.Unit, unit)
		f.set("measurement", &g.Measurement, measurementFor(message, unit))
	} else {
		f.set("measurement", &g.Measurement, measurementFor(message, ""))
	}
	if date, ok := FindDate(message, today); ok {
		f.set("date", &g.Date, date)
	}
}

func measurementFor(message, unit string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "head"):
		return "head_circumference"
	case strings.Contains(lower, "weigh"), unit == "lb", unit == "kg", unit == "oz":
		return "weight"
	case strings.Contains(lower, "height"), strings.Contains(lower, "tall"), unit == "cm", unit == "in", unit == "ft":
		return "height"
	}
	return ""
}

// childName prefers a known child mentioned in message, then "for <Name>".
func childName(message string, fc *models.FamilyContext) string {
	for _, c := range fc.Children() {
		first := firstName(c.Name)
		if first != "" && containsWord(message, first) {
			return first
		}
	}
	if m := forPerson.FindStringSubmatch(message); m != nil && !isStopword(m[1]) {
		return m[1]
	}
	return ""
}

// providerName tries "named X", then "her/his name is X", then the first
// two adjacent capitalized words that are not a family member or the child.
func providerName(message, child string, fc *models.FamilyContext) string {
	for _, re := range []*regexp.Regexp{namedPhrase, nameIsPhrase} {
		if m := re.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}

	words := wordPattern.FindAllString(message, -1)
	for i := 0; i+1 < len(words); i++ {
		a, b := words[i], words[i+1]
		if !isCapitalized(a) || !isCapitalized(b) || isStopword(a) || isStopword(b) {
			continue
		}
		if strings.EqualFold(a, child) || strings.EqualFold(b, child) {
			continue
		}
		if _, ok := fc.MemberByName(a + " " + b); ok {
			continue
		}
		if !adjacent(message, a, b) {
			continue
		}
		return a + " " + b
	}
	return ""
}

func eventTitle(message string) string {
	m := eventNoun.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	words := strings.Fields(strings.ReplaceAll(m[1], "-", " - "))
	if len(words) > 1 && articles[strings.ToLower(words[0])] {
		words = words[1:]
	}
	title := strings.ReplaceAll(strings.Join(words, " "), " - ", "-")
	return capitalizeFirst(strings.ToLower(title))
}

func taskTitle(message string) string {
	for _, re := range taskTitlePatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		title := m[1]
		if i := strings.IndexAny(title, ",;!?"); i >= 0 {
			title = title[:i]
		}
		title = datePhrase.ReplaceAllString(title, "")
		title = forPerson.ReplaceAllString(title, "")
		title = assignPhrase.ReplaceAllString(title, "")
		title = strings.Join(strings.Fields(title), " ")
		title = strings.TrimRight(title, " .!?,;")
		title = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(title, " by"), " on"), " before")
		if title != "" {
			return capitalizeFirst(title)
		}
	}
	return ""
}

func matchRule(rules []typeRule, text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, w := range r.words {
			if strings.Contains(lower, w) {
				return r.to
			}
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	for _, w := range wordPattern.FindAllString(text, -1) {
		if strings.EqualFold(strings.TrimSuffix(w, "'s"), word) {
			return true
		}
	}
	return false
}

func adjacent(message, a, b string) bool {
	i := strings.Index(message, a)
	if i < 0 {
		return false
	}
	rest := strings.TrimLeftFunc(message[i+len(a):], unicode.IsSpace)
	return strings.HasPrefix(rest, b) && len(rest) < len(message[i+len(a):])
}

func isCapitalized(w string) bool {
	r := []rune(w)
	return len(r) > 1 && unicode.IsUpper(r[0]) && !unicode.IsUpper(r[1])
}

func isStopword(w string) bool {
	lower := strings.ToLower(w)
	if capitalStopwords[lower] {
		return true
	}
	if _, ok := weekdays[lower]; ok {
		return true
	}
	_, ok := months[lower]
	return ok
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func capitalizeFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// DetectProviderType returns the provider type named anywhere in text, or "".
func DetectProviderType(text string) string {
	return matchRule(providerTypeRules, text)
}
