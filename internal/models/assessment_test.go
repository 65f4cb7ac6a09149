package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageScore(t *testing.T) {
	assert.Equal(t, 2.5, AverageScore([]Score{ScoreBSB, ScoreMB, ScoreBSH, ScoreBB}))
	assert.Equal(t, 0.0, AverageScore(nil))
	assert.Equal(t, 3.33, AverageScore([]Score{ScoreBSB, ScoreBSH, ScoreBSH}))
}

func TestParseScore(t *testing.T) {
	s, ok := ParseScore(" bsh ")
	assert.True(t, ok)
	assert.Equal(t, ScoreBSH, s)
	assert.Equal(t, "Berkembang Sesuai Harapan", s.Label())

	_, ok = ParseScore("A")
	assert.False(t, ok)
}

func TestScoreOrdering(t *testing.T) {
	for i := 1; i < len(Scores); i++ {
		assert.Less(t, Scores[i-1].Weight(), Scores[i].Weight())
	}
}
