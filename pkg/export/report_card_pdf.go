package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// AspectEntry is one scored aspect printed on a report card.
type AspectEntry struct {
	Category   string
	Name       string
	Score      string
	ScoreLabel string
	Narrative  string
}

// ReportCardDocument holds everything printed on a single report card.
type ReportCardDocument struct {
	SchoolName    string
	StudentName   string
	NISN          string
	ClassroomName string
	TermLabel     string
	Aspects       []AspectEntry
	Attendance    map[string]int
	HeightCM      *float64
	WeightKG      *float64
	GrowthStatus  string
	AverageScore  float64
	PublishedAt   *time.Time
	Draft         bool
}

var attendanceOrder = []string{"hadir", "sakit", "izin", "alpha"}

// ReportCardPDF renders report cards on A4 portrait pages.
type ReportCardPDF struct {
	schoolName string
}

// NewReportCardPDF builds a renderer that prints schoolName in every header.
func NewReportCardPDF(schoolName string) *ReportCardPDF {
	return &ReportCardPDF{schoolName: schoolName}
}

// Render produces a single report card PDF.
func (r *ReportCardPDF) Render(doc ReportCardDocument) ([]byte, error) {
	return r.RenderMany([]ReportCardDocument{doc})
}

// RenderMany produces one PDF with a page per report card.
func (r *ReportCardPDF) RenderMany(docs []ReportCardDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no report cards to render")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)

	for _, doc := range docs {
		if doc.SchoolName == "" {
			doc.SchoolName = r.schoolName
		}
		r.page(pdf, tr, doc)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render report card pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *ReportCardPDF) page(pdf *gofpdf.Fpdf, tr func(string) string, doc ReportCardDocument) {
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr("LAPORAN PERKEMBANGAN ANAK DIDIK"), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, tr(doc.SchoolName), "", 1, "C", false, 0, "")
	if doc.Draft {
		pdf.SetTextColor(200, 0, 0)
		pdf.CellFormat(0, 6, "DRAFT", "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	info := [][2]string{
		{"Nama", doc.StudentName},
		{"NISN", doc.NISN},
		{"Kelas", doc.ClassroomName},
		{"Periode", doc.TermLabel},
	}
	pdf.SetFont("Arial", "", 10)
	for _, row := range info {
		pdf.CellFormat(35, 6, tr(row[0]), "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, tr(": "+row[1]), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	for _, aspect := range doc.Aspects {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 236, 245)
		title := fmt.Sprintf("%s - %s (%s)", aspect.Category, aspect.Name, aspect.Score)
		pdf.CellFormat(0, 7, tr(title), "1", 1, "", true, 0, "")
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 5, tr(aspect.ScoreLabel), "LR", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(aspect.Narrative), "LRB", "J", false)
		pdf.Ln(2)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Rata-rata capaian: %.2f", doc.AverageScore)), "", 1, "", false, 0, "")

	if len(doc.Attendance) > 0 {
		pdf.Ln(2)
		pdf.CellFormat(0, 6, "Kehadiran", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, key := range attendanceOrder {
			pdf.CellFormat(40, 6, tr(key), "1", 0, "", false, 0, "")
			pdf.CellFormat(20, 6, fmt.Sprintf("%d", doc.Attendance[key]), "1", 1, "C", false, 0, "")
		}
	}

	if doc.HeightCM != nil && doc.WeightKG != nil {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Pertumbuhan", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		growth := fmt.Sprintf("Tinggi %.1f cm, Berat %.1f kg, Status %s", *doc.HeightCM, *doc.WeightKG, doc.GrowthStatus)
		pdf.CellFormat(0, 6, tr(growth), "", 1, "", false, 0, "")
	}

	if doc.PublishedAt != nil {
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, "Diterbitkan "+doc.PublishedAt.Format("02-01-2006"), "", 1, "R", false, 0, "")
	}
}
