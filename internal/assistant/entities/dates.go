package entities

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const (
	weekdayExpr = `(?:sunday|sun|monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat)`
	fullWeekday = `(?:sunday|monday|tuesday|wednesday|thursday|friday|saturday)`
	monthExpr   = `(?:january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)`
)

var (
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDate    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?$`)
	inDays       = regexp.MustCompile(`^in\s+(\d+|a|one|two|three|four|five|six|seven)\s+(day|days|week|weeks)$`)
	nextWeekday  = regexp.MustCompile(`^next\s+(` + weekdayExpr + `)$`)
	thisWeekday  = regexp.MustCompile(`^(?:this\s+(?:coming\s+)?)(` + weekdayExpr + `)$`)
	bareWeekday  = regexp.MustCompile(`^(?:on\s+)?(` + weekdayExpr + `)$`)
	monthDay     = regexp.MustCompile(`^(?:on\s+)?(` + monthExpr + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	dayMonth     = regexp.MustCompile(`^(?:on\s+)?(?:the\s+)?(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthExpr + `)(?:,?\s+(\d{4}))?$`)
	smallNumbers = map[string]int{"a": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7}
)

// datePhrase finds a date expression inside free text.
var datePhrase = regexp.MustCompile(`(?i)\b(?:` +
	`day after tomorrow|today|tonight|tomorrow|yesterday|next week|` +
	`(?:next|this(?:\s+coming)?)\s+` + weekdayExpr + `|` +
	`on\s+` + fullWeekday + `|` +
	`in\s+(?:\d+|a|one|two|three|four|five|six|seven)\s+(?:days?|weeks?)|` +
	`\d{4}-\d{1,2}-\d{1,2}|` +
	monthExpr + `\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?|` +
	`\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthExpr + `|` +
	fullWeekday +
	`)\b`)

// FindDate resolves the first date expression in text.
func FindDate(text string, today time.Time) (string, bool) {
	phrase := datePhrase.FindString(text)
	if phrase == "" {
		return "", false
	}
	return ResolveDate(phrase, today)
}

// ResolveDate turns a date phrase into YYYY-MM-DD relative to today.
// "next <weekday>" and a bare weekday mean the first such day strictly
// after today; "this <weekday>" may be today. Explicit dates in the past
// roll forward to their next occurrence.
func ResolveDate(phrase string, today time.Time) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	p = strings.Join(strings.Fields(p), " ")
	day := truncateDay(today)

	switch p {
	case "":
		return "", false
	case "today", "tonight":
		return day.Format(dateLayout), true
	case "yesterday":
		return day.AddDate(0, 0, -1).Format(dateLayout), true
	case "tomorrow":
		return day.AddDate(0, 0, 1).Format(dateLayout), true
	case "day after tomorrow":
		return day.AddDate(0, 0, 2).Format(dateLayout), true
	case "next week":
		return day.AddDate(0, 0, 7).Format(dateLayout), true
	}

	if m := nextWeekday.FindStringSubmatch(p); m != nil {
		return nextOccurrence(day, weekdays[m[1]], false).Format(dateLayout), true
	}
	if m := thisWeekday.FindStringSubmatch(p); m != nil {
		return nextOccurrence(day, weekdays[m[1]], true).Format(dateLayout), true
	}
	if m := bareWeekday.FindStringSubmatch(p); m != nil {
		return nextOccurrence(day, weekdays[m[1]], false).Format(dateLayout), true
	}
	if m := inDays.FindStringSubmatch(p); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return day.AddDate(0, 0, n).Format(dateLayout), true
	}
	if m := isoDate.FindStringSubmatch(p); m != nil {
		return explicitDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), true, day)
	}
	if m := slashDate.FindStringSubmatch(p); m != nil {
		year, hasYear := day.Year(), false
		if m[3] != "" {
			year, hasYear = atoi(m[3]), true
			if year < 100 {
				year += 2000
			}
		}
		return explicitDate(year, time.Month(atoi(m[1])), atoi(m[2]), hasYear, day)
	}
	if m := monthDay.FindStringSubmatch(p); m != nil {
		return explicitDate(yearOr(m[3], day), months[m[1]], atoi(m[2]), m[3] != "", day)
	}
	if m := dayMonth.FindStringSubmatch(p); m != nil {
		return explicitDate(yearOr(m[3], day), months[m[2]], atoi(m[1]), m[3] != "", day)
	}
	return "", false
}

// RollForward moves a YYYY-MM-DD date that lies before today to its next
// occurrence. Feb 29 moves to the next leap year.
func RollForward(date string, today time.Time) (string, bool) {
	t, err := time.ParseInLocation(dateLayout, date, today.Location())
	if err != nil {
		return "", false
	}
	return rollForward(t.Month(), t.Day(), t.Year(), truncateDay(today)).Format(dateLayout), true
}

func explicitDate(year int, month time.Month, dayOfMonth int, hasYear bool, today time.Time) (string, bool) {
	if month < time.January || month > time.December || dayOfMonth < 1 || dayOfMonth > 31 {
		return "", false
	}
	if !validDay(year, month, dayOfMonth) && !(month == time.February && dayOfMonth == 29) {
		return "", false
	}
	if hasYear && validDay(year, month, dayOfMonth) {
		t := time.Date(year, month, dayOfMonth, 0, 0, 0, 0, today.Location())
		if !t.Before(today) {
			return t.Format(dateLayout), true
		}
	}
	return rollForward(month, dayOfMonth, year, today).Format(dateLayout), true
}

func rollForward(month time.Month, dayOfMonth, year int, today time.Time) time.Time {
	if candidate := time.Date(year, month, dayOfMonth, 0, 0, 0, 0, today.Location()); validDay(year, month, dayOfMonth) && !candidate.Before(today) {
		return candidate
	}
	for y := today.Year(); ; y++ {
		if !validDay(y, month, dayOfMonth) {
			continue
		}
		candidate := time.Date(y, month, dayOfMonth, 0, 0, 0, 0, today.Location())
		if !candidate.Before(today) {
			return candidate
		}
	}
}

func validDay(year int, month time.Month, dayOfMonth int) bool {
	t := time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
	return t.Month() == month && t.Day() == dayOfMonth
}

func nextOccurrence(today time.Time, wd time.Weekday, includeToday bool) time.Time {
	diff := (int(wd) - int(today.Weekday()) + 7) % 7
	if diff == 0 && !includeToday {
		diff = 7
	}
	return today.AddDate(0, 0, diff)
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func yearOr(s string, today time.Time) int {
	if s == "" {
		return today.Year()
	}
	return atoi(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var (
	clockTime  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)$`)
	twentyFour = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
	timeInText = regexp.MustCompile(`(?i)\b(?:\d{1,2}(?::\d{2})?\s*(?:a\.?m\.?|p\.?m\.?)|(?:[01]?\d|2[0-3]):[0-5]\d|noon|midnight)`)
)

// ParseTime converts "3pm", "3:30 PM", "15:00", "noon" or "midnight" to
// HH:MM.
func ParseTime(s string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(s))
	p = strings.TrimPrefix(p, "at ")
	switch p {
	case "noon", "midday":
		return "12:00", true
	case "midnight":
		return "00:00", true
	}

	if m := clockTime.FindStringSubmatch(p); m != nil {
		hour, minute := atoi(m[1]), 0
		if m[2] != "" {
			minute = atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return "", false
		}
		pm := strings.HasPrefix(m[3], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	if m := twentyFour.FindStringSubmatch(p); m != nil {
		return fmt.Sprintf("%02d:%s", atoi(m[1]), m[2]), true
	}
	return "", false
}

// FindTime resolves the first time expression in text.
func FindTime(text string) (string, bool) {
	phrase := timeInText.FindString(text)
	if phrase == "" {
		return "", false
	}
	return ParseTime(phrase)
}

type typeRule struct {
	words []string
	to    string
}

var eventTypeRules = []typeRule{
	{[]string{"dentist", "dental", "doctor", "pediatrician", "checkup", "check-up", "physical", "orthodontist", "vaccine", "vaccination", "medical", "clinic"}, "doctor"},
	{[]string{"school", "conference", "parent-teacher", "field trip", "pta"}, "school"},
	{[]string{"birthday", "party", "playdate", "play date", "sleepover", "wedding", "social"}, "social"},
	{[]string{"practice", "game", "lesson", "recital", "class", "tournament", "match", "rehearsal", "training", "activity"}, "activity"},
}

// NormalizeEventType maps free wording onto doctor, school, social or
// activity. Unrecognized non-empty input becomes "other".
func NormalizeEventType(s string) string {
	p := strings.ToLower(strings.TrimSpace(s))
	if p == "" {
		return ""
	}
	if t := matchRule(eventTypeRules, p); t != "" {
		return t
	}
	return "other"
}

var providerTypeRules = []typeRule{
	{[]string{"babysit", "sitter", "nanny", "au pair", "daycare", "day care", "childcare", "child care", "caregiver", "caretaker"}, "childcare"},
	{[]string{"dentist", "dental", "orthodontist"}, "dental"},
	{[]string{"doctor", "pediatrician", "physician", "nurse", "therapist", "clinic", "medical"}, "medical"},
	{[]string{"tutor", "teacher", "school", "education"}, "education"},
	{[]string{"coach", "instructor", "trainer", "activity"}, "activity"},
}

// NormalizeProviderType maps any childcare helper to "childcare" and other
// wording to a small set of provider types.
func NormalizeProviderType(s string) string {
	p := strings.ToLower(strings.TrimSpace(s))
	if p == "" {
		return ""
	}
	if t := matchRule(providerTypeRules, p); t != "" {
		return t
	}
	return "other"
}
