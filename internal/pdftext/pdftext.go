// Package pdftext turns the downloaded report into plain text, one visual row
// per line.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction marks a document that could not be converted to text.
var ErrExtraction = errors.New("text extraction failed")

// Extractor converts a document's bytes to plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// PDF extracts text with github.com/ledongthuc/pdf.
type PDF struct{}

// Extract returns the text of every page, rows top to bottom separated by
// newlines. Glyphs are placed by their text-matrix position, so documents
// that move between lines with Td, TD or T* keep their row structure.
// Fragments in a row are ordered by x and separated by a space where the
// layout leaves a visible gap.
func (PDF) Extract(data []byte) (text string, err error) {
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, row := range groupRows(page.Content().Text) {
			sb.WriteString(joinRow(row))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// rowTolerance is the vertical distance, as a fraction of font size, within
// which glyphs share a row.
const rowTolerance = 0.5

// groupRows buckets glyphs into rows ordered top-down (PDF y grows upwards).
func groupRows(texts []pdf.Text) [][]pdf.Text {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		// TJ arrays end with a synthetic newline glyph.
		if strings.Trim(t.S, "\r\n") == "" {
			continue
		}
		glyphs = append(glyphs, t)
	}
	sort.SliceStable(glyphs, func(a, b int) bool { return glyphs[a].Y > glyphs[b].Y })

	var rows [][]pdf.Text
	var rowY float64
	for _, g := range glyphs {
		tol := rowTolerance * math.Max(g.FontSize, 1)
		if len(rows) == 0 || math.Abs(rowY-g.Y) > tol {
			rows = append(rows, nil)
			rowY = g.Y
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], g)
	}
	return rows
}

// gapRatio is the horizontal gap, as a fraction of font size, above which two
// fragments are treated as separate words.
const gapRatio = 0.25

func joinRow(texts []pdf.Text) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].X < sorted[b].X })

	var sb strings.Builder
	for i, t := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			advance := prev.W
			if advance <= 0 {
				advance = 0.5 * prev.FontSize * float64(utf8.RuneCountInString(prev.S))
			}
			if t.X-(prev.X+advance) > gapRatio*prev.FontSize && !strings.HasSuffix(prev.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
	}
	return sb.String()
}
