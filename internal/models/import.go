package models

// ImportReport summarises a roster import run.
type ImportReport struct {
	SuccessCount    int              `json:"successCount"`
	Errors          []string         `json:"errors"`
	CreatedStudents []CreatedStudent `json:"createdStudents"`
	CreatedParents  []CreatedParent  `json:"createdParents"`
	LinkedPairs     []LinkedPair     `json:"linkedPairs"`
}

// NewImportReport returns a report with non-nil slices so it serialises as empty arrays.
func NewImportReport() *ImportReport {
	return &ImportReport{
		Errors:          []string{},
		CreatedStudents: []CreatedStudent{},
		CreatedParents:  []CreatedParent{},
		LinkedPairs:     []LinkedPair{},
	}
}

// CreatedStudent identifies a student created by an import.
type CreatedStudent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreatedParent identifies a parent account created by an import.
type CreatedParent struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// LinkedPair names a parent-student link created by an import.
type LinkedPair struct {
	Student string `json:"student"`
	Parent  string `json:"parent"`
}
