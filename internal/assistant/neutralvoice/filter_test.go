package neutralvoice

import (
	"math/rand"
	"strings"
	"testing"

	"family-assistant/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, opts ...Option) *Filter {
	t.Helper()
	opts = append([]Option{WithRandSource(rand.NewSource(1))}, opts...)
	return New(logger.NewTestLogger(t), opts...)
}

func TestNeutralize_RemovesAccusation(t *testing.T) {
	f := newTestFilter(t)

	out := f.Neutralize("You never help with this", Context{})

	assert.Zero(t, DetectBlamePatterns(out).Count(), out)
	assert.NotRegexp(t, `(?i)\byou\b`, out)
	assert.True(t, HasCollaboration(out), out)
	assert.False(t, HasHarshOpening(out), out)
}

func TestNeutralize_PlaceholderDefaults(t *testing.T) {
	f := newTestFilter(t, WithTemplates(TemplateBank{
		RoleAttribution: {"It sounds like {person} is carrying {task} for {role}"},
	}))

	out := f.Neutralize("Dad never cooks dinner.", Context{})
	assert.True(t, strings.HasPrefix(out, "It sounds like one person is carrying this for a family member."), out)

	out = f.Neutralize("Dad never cooks dinner.", Context{Person: "Sam", Task: "dinner", Role: "Alex"})
	assert.True(t, strings.HasPrefix(out, "It sounds like Sam is carrying dinner for Alex."), out)
}

func TestNeutralize_TaskHintFromSpan(t *testing.T) {
	f := newTestFilter(t, WithTemplates(TemplateBank{
		Accusation: {"The load around {task} seems uneven"},
	}))

	out := f.Neutralize("You never help with the laundry.", Context{})
	assert.True(t, strings.HasPrefix(out, "The load around the laundry seems uneven."), out)
}

func TestNeutralize_LeavesNeutralTextAlone(t *testing.T) {
	f := newTestFilter(t)
	inputs := []string{
		"How might we adjust the weekly routine so the school run feels balanced?",
		"Could we look at the grocery plan together this weekend?",
		"The pickup schedule seems tight on Tuesdays. What would help?",
	}
	for _, in := range inputs {
		assert.Equal(t, in, f.Neutralize(in, Context{}))
	}
}

func TestNeutralize_Idempotent(t *testing.T) {
	f := newTestFilter(t)
	inputs := []string{
		"You never help with this",
		"Why didn't you pick up Lily? You should have remembered.",
		"It's just a few dishes, you need to stop complaining",
		"She always forgets the dentist appointments",
		"Sam isn't helping enough",
		"Dinner is at six",
	}
	for _, in := range inputs {
		once := f.Neutralize(in, Context{})
		twice := f.Neutralize(once, Context{})
		assert.Equal(t, once, twice, in)
		assert.Zero(t, DetectBlamePatterns(once).Count(), once)
	}
}

func TestNeutralize_Blank(t *testing.T) {
	f := newTestFilter(t)
	assert.Equal(t, "", f.Neutralize("", Context{}))
	assert.Equal(t, "  ", f.Neutralize("  ", Context{}))
}

func TestDetectBlamePatterns_Categories(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"You always leave the lights on", Accusation},
		{"It's your fault we were late", Accusation},
		{"You need to clean the garage", Directive},
		{"It's just a quick errand", Minimization},
		{"Why don't you ever call ahead?", Interrogation},
		{"How many times do I have to ask?", Interrogation},
		{"He never packs the lunches", RoleAttribution},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := DetectBlamePatterns(tt.text)
			require.NotZero(t, d.Count())
			assert.Equal(t, tt.want, d.Matches[0].Category)
		})
	}
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityNone, severityFor(0))
	assert.Equal(t, SeverityMild, severityFor(1))
	assert.Equal(t, SeverityModerate, severityFor(2))
	assert.Equal(t, SeverityModerate, severityFor(3))
	assert.Equal(t, SeverityHigh, severityFor(4))
}

func TestNonOverlapping(t *testing.T) {
	d := DetectBlamePatterns("Why do you never help")
	require.GreaterOrEqual(t, d.Count(), 2)

	kept := nonOverlapping(d.Matches)
	require.Len(t, kept, 1)
	assert.Equal(t, Interrogation, kept[0].Category)
}

func TestFocusOnSystem(t *testing.T) {
	assert.Equal(t, "The current split isn't working well for everyone.", FocusOnSystem("Sam isn't helping enough."))
	assert.Equal(t, "Lately the workload may not be balanced right now.", FocusOnSystem("Lately Jordan doesn't do enough."))
	assert.Equal(t, "Nothing to change.", FocusOnSystem("Nothing to change."))
}

func TestFocusOnSystem_RepeatedPhrase(t *testing.T) {
	assert.Equal(t,
		"Honestly, the current split isn't working well for everyone. The current split isn't working well for everyone.",
		FocusOnSystem("Honestly, Sam isn't helping enough. Sam isn't helping enough."))
	assert.Equal(t,
		"The current split isn't working well for everyone, and the current split isn't working well for everyone.",
		FocusOnSystem("Sam isn't helping enough, and Sam isn't helping enough."))
}

func TestEnsureCollaboration(t *testing.T) {
	f := newTestFilter(t)

	out := f.EnsureCollaboration("Dinner is at six")
	assert.True(t, strings.HasPrefix(out, "Dinner is at six. "), out)
	assert.True(t, strings.HasSuffix(out, "?"), out)

	assert.Equal(t, "Let's plan the week.", f.EnsureCollaboration("Let's plan the week."))
}

func TestEnsureGentleOpening(t *testing.T) {
	f := newTestFilter(t)

	assert.True(t, HasHarshOpening("Why is the car here"))
	assert.True(t, HasHarshOpening("mom always drives"))
	assert.False(t, HasHarshOpening("The car is here, why not use it"))

	out := f.EnsureGentleOpening("you did the shopping.")
	assert.False(t, HasHarshOpening(out), out)
	assert.True(t, strings.HasSuffix(out, "You did the shopping."), out)
}
