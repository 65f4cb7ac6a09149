package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/paud-api/internal/models"
)

var genderSynonyms = map[string]models.Gender{
	"l":         models.GenderMale,
	"laki-laki": models.GenderMale,
	"laki":      models.GenderMale,
	"male":      models.GenderMale,
	"m":         models.GenderMale,
	"p":         models.GenderFemale,
	"perempuan": models.GenderFemale,
	"female":    models.GenderFemale,
	"f":         models.GenderFemale,
}

var relationshipSynonyms = map[string]models.RelationshipType{
	"ayah":     models.RelationshipFather,
	"bapak":    models.RelationshipFather,
	"father":   models.RelationshipFather,
	"dad":      models.RelationshipFather,
	"ibu":      models.RelationshipMother,
	"bunda":    models.RelationshipMother,
	"mother":   models.RelationshipMother,
	"mom":      models.RelationshipMother,
	"mama":     models.RelationshipMother,
	"wali":     models.RelationshipGuardian,
	"guardian": models.RelationshipGuardian,
}

// Tried in order; single-digit day and month are accepted by the non-padded layouts.
var birthDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	"02-01-2006",
	"2-1-2006",
}

func normalizeGender(raw string) (models.Gender, error) {
	if g, ok := genderSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return g, nil
	}
	return "", fmt.Errorf("unrecognised gender %q", raw)
}

func parseBirthDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date of birth %q (use DD/MM/YYYY, YYYY-MM-DD or DD-MM-YYYY)", raw)
}

// normalizePhone keeps digits only.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeRelationship(raw string) models.RelationshipType {
	if rel, ok := relationshipSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return rel
	}
	return models.RelationshipGuardian
}

// cleanName composes accents to NFC and collapses runs of whitespace.
func cleanName(raw string) string {
	return strings.Join(strings.FieldsFunc(norm.NFC.String(raw), unicode.IsSpace), " ")
}

// bootstrapPassword is the first-login credential given to parents: the child's birth date as DDMMYYYY.
func bootstrapPassword(dob time.Time) string {
	return dob.Format("02012006")
}

func blankToNil(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
