package export

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slug folds accents, drops punctuation and joins words with sep.
func Slug(s, sep string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	pendingSep := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteString(sep)
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// ReportCardFilename builds "Raport_<name>_<semester>_<year>.pdf".
func ReportCardFilename(studentName string, semester int, yearName string) string {
	year := strings.ReplaceAll(yearName, "/", "-")
	return fmt.Sprintf("Raport_%s_%d_%s.pdf", Slug(studentName, "_"), semester, Slug(year, "-"))
}
