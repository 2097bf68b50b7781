package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// PDFOptions configures PDF rendering
type PDFOptions struct {
	PageSize   string
	FontFamily string
	FontSize   float64
	Compress   bool
}

// DefaultPDFOptions returns A4 with Helvetica 10pt
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:   "A4",
		FontFamily: "Helvetica",
		FontSize:   10,
		Compress:   true,
	}
}

// PDF renders r with the same sections as Text
func PDF(r *domain.ProcessingResult, opts PDFOptions) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", opts.PageSize, "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetCompression(opts.Compress)
	pdf.SetCreationDate(r.Timestamp)
	pdf.SetModificationDate(r.Timestamp)
	pdf.SetTitle("Document Verification Report", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(opts.FontFamily, "I", opts.FontSize-2)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	// core fonts are cp1252; non-Latin glyphs from the scan cannot be drawn
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont(opts.FontFamily, "B", opts.FontSize+6)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, "DOCUMENT VERIFICATION REPORT", "", 1, "C", false, 0, "")

	pdf.SetFont(opts.FontFamily, "", opts.FontSize)
	pdf.SetTextColor(90, 90, 90)
	for _, line := range header(r) {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	for _, s := range sections(r) {
		pdf.SetFont(opts.FontFamily, "B", opts.FontSize+1)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(0, 8, s.title, "", 1, "L", true, 0, "")
		pdf.Ln(1)

		pdf.SetFont(opts.FontFamily, "", opts.FontSize)
		pdf.SetTextColor(0, 0, 0)
		for _, line := range s.lines {
			if line == "" {
				pdf.Ln(2)
				continue
			}
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf report: %w", err)
	}
	return buf.Bytes(), nil
}
