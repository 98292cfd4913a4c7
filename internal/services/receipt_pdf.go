package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ReceiptPDFService extracts the plain text from an uploaded receipt PDF
// so it can flow through the same pipeline as client-side OCR text.
type ReceiptPDFService struct {
	maxPages int
}

// NewReceiptPDFService creates a PDF intake service with a page cap.
func NewReceiptPDFService(maxPages int) *ReceiptPDFService {
	return &ReceiptPDFService{maxPages: maxPages}
}

// ExtractText validates the PDF and concatenates the text of all pages.
func (s *ReceiptPDFService) ExtractText(pdfPath string) (string, error) {
	if err := api.ValidateFile(pdfPath, nil); err != nil {
		return "", fmt.Errorf("invalid PDF file: %v", err)
	}

	pageCount, err := api.PageCountFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF page count: %v", err)
	}
	if pageCount > s.maxPages {
		return "", fmt.Errorf("PDF has %d pages, the maximum is %d", pageCount, s.maxPages)
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %v", err)
	}
	defer f.Close()

	var content strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		content.WriteString(text)
		content.WriteString("\n\n")
	}

	if content.Len() == 0 {
		return "", fmt.Errorf("no text content extracted from PDF")
	}

	return content.String(), nil
}
