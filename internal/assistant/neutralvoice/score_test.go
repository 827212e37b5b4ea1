package neutralvoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageNeutrality_Rubric(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"plain statement", "Dinner is at six.", 100},
		{"one blame pattern", "You never help.", 85},
		{"excess second person", "You and your car and your keys and your phone.", 90},
		{"two blame patterns", "You never help. You need to try harder.", 70},
		{"rewards offset blame", "You never help. Could we rethink our routine?", 100},
		{"bonuses are capped", "You never help. You need to try harder. Could we fix our schedule, plan and routine with us?", 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MessageNeutrality(tt.text).Score)
		})
	}
}

func TestMessageNeutrality_NonIncreasingUnderInjection(t *testing.T) {
	text := "Could we look at our evening routine together?"
	injections := []string{
		" You never help.",
		" You need to do more.",
		" It's just a few dishes.",
		" Why don't you ever listen?",
		" Dad never cooks.",
	}

	baseline := MessageNeutrality(text)
	prev := baseline.Score
	for _, inj := range injections {
		text += inj
		score := MessageNeutrality(text).Score
		assert.LessOrEqual(t, score, prev, text)
		prev = score
	}
	assert.Less(t, prev, baseline.Score)
}

func TestMessageNeutrality_Recommendations(t *testing.T) {
	r := MessageNeutrality("You never help.")
	assert.Equal(t, 1, r.BlamePatterns)
	assert.Equal(t, SeverityMild, r.Severity)
	assert.Len(t, r.Recommendations, 4)

	clean := MessageNeutrality("Could we rethink our routine?")
	assert.Empty(t, clean.Recommendations)
	assert.Equal(t, 100, clean.Score)
}
