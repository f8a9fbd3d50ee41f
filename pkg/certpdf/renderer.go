// Package certpdf renders completion certificates as single-page PDFs.
package certpdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Document holds everything printed on a certificate.
type Document struct {
	Code        string
	StudentName string
	CourseTitle string
	BatchNumber int
	IssuedAt    time.Time
	IssuerName  string
	VerifyURL   string
}

// Renderer produces certificate PDFs.
type Renderer struct {
	issuerName string
}

// NewRenderer constructs a renderer using issuerName when a document has none.
func NewRenderer(issuerName string) *Renderer {
	if strings.TrimSpace(issuerName) == "" {
		issuerName = "Training Academy"
	}
	return &Renderer{issuerName: issuerName}
}

// Render creates a landscape A4 certificate.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	if doc.Code == "" || doc.StudentName == "" || doc.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires code, student name and course title")
	}
	issuer := doc.IssuerName
	if issuer == "" {
		issuer = r.issuerName
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle("Certificate "+doc.Code, true)
	pdf.SetCreator(issuer, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetY(35)
	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 12, tr(doc.StudentName), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "has successfully completed", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	course := doc.CourseTitle
	if doc.BatchNumber > 0 {
		course = fmt.Sprintf("%s (batch %d)", course, doc.BatchNumber)
	}
	pdf.CellFormat(0, 10, tr(course), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, "Issued by "+tr(issuer)+" on "+doc.IssuedAt.UTC().Format("2 January 2006"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 7, "Certificate code: "+doc.Code, "", 1, "C", false, 0, "")
	if doc.VerifyURL != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "Verify at "+doc.VerifyURL, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
