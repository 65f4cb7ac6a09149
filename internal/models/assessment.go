package models

import (
	"math"
	"strings"
	"time"
)

// Score is the ordinal developmental rating given per aspect.
type Score string

const (
	ScoreBB  Score = "BB"
	ScoreMB  Score = "MB"
	ScoreBSH Score = "BSH"
	ScoreBSB Score = "BSB"
)

// Scores lists every score from lowest to highest.
var Scores = []Score{ScoreBB, ScoreMB, ScoreBSH, ScoreBSB}

// ParseScore accepts a score code in any letter case.
func ParseScore(raw string) (Score, bool) {
	s := Score(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case ScoreBB, ScoreMB, ScoreBSH, ScoreBSB:
		return s, true
	}
	return "", false
}

// Weight returns the ordinal weight used for averages (BB=1 .. BSB=4).
func (s Score) Weight() int {
	switch s {
	case ScoreBB:
		return 1
	case ScoreMB:
		return 2
	case ScoreBSH:
		return 3
	case ScoreBSB:
		return 4
	}
	return 0
}

// Label returns the Indonesian description of the score.
func (s Score) Label() string {
	switch s {
	case ScoreBB:
		return "Belum Berkembang"
	case ScoreMB:
		return "Mulai Berkembang"
	case ScoreBSH:
		return "Berkembang Sesuai Harapan"
	case ScoreBSB:
		return "Berkembang Sangat Baik"
	}
	return ""
}

// AverageScore is the weighted mean of the given scores rounded to two decimals; 0 for none.
func AverageScore(scores []Score) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0
	for _, s := range scores {
		total += s.Weight()
	}
	return math.Round(float64(total)/float64(len(scores))*100) / 100
}

// AssessmentAspect is a developmental area that every report card scores.
type AssessmentAspect struct {
	ID          string    `db:"id" json:"id"`
	Category    string    `db:"category" json:"category"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	SortOrder   int       `db:"sort_order" json:"order"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
