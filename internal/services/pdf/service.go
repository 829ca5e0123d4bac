package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/citation"
	"github.com/ternarybob/handoff/internal/services/markup"
)

const (
	fontFamily = "Arial"
	baseSize   = 10.0
	lineHeight = 5.0
	pageWidth  = 180.0
)

// Service renders handoff documents to PDF
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// RenderDocument lays out the document under a patient header and appends a
// table of the records its citations refer to. patient and records may be nil.
func (s *Service) RenderDocument(doc *models.HandoffDocument, patient *models.Patient, records []models.PatientRecord) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}

	s.logger.Debug().
		Str("document_id", doc.ID).
		Int("markdown_len", len(doc.Content)).
		Msg("Rendering document to PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(string(doc.DocumentType), true)
	pdf.SetAuthor(doc.CreatedBy, true)
	pdf.SetCreator("handoff", false)
	pdf.AddPage()

	r := &pdfRenderer{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		logger: s.logger,
		size:   baseSize,
	}

	r.renderHeader(doc, patient)

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	r.source = []byte(markup.Normalize(doc.Content))
	if err := ast.Walk(md.Parser().Parse(text.NewReader(r.source)), r.walk); err != nil {
		s.logger.Error().Err(err).Msg("Failed to lay out document")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	r.renderCitedRecords(doc.Content, records)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated successfully")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	source    []byte
	logger    arbor.ILogger
	size      float64
	bold      bool
	italic    bool
	listLevel int
	ordinals  []int
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(lineHeight, r.tr(s))
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(fontFamily, style, r.size)
}

func (r *pdfRenderer) renderHeader(doc *models.HandoffDocument, patient *models.Patient) {
	r.pdf.SetFont(fontFamily, "B", 14)
	r.pdf.CellFormat(0, 8, r.tr(string(doc.DocumentType)), "", 1, "L", false, 0, "")

	r.pdf.SetFont(fontFamily, "", 9)
	var meta []string
	if patient != nil {
		meta = append(meta,
			fmt.Sprintf("%s (MRN %s)", patient.Name, patient.MRN),
			fmt.Sprintf("%d%s, %s", patient.Age, patient.Gender, patient.Location),
		)
	}
	if doc.VisitID != "" {
		meta = append(meta, "Visit "+doc.VisitID)
	}
	if doc.Format != "" {
		meta = append(meta, strings.ToUpper(string(doc.Format)))
	}
	if doc.CreatedBy != "" {
		meta = append(meta, doc.CreatedBy)
	}
	if !doc.ModifiedAt.IsZero() {
		meta = append(meta, doc.ModifiedAt.Format("2006-01-02 15:04"))
	}
	if len(meta) > 0 {
		r.pdf.MultiCell(0, 4.5, r.tr(strings.Join(meta, "  |  ")), "", "L", false)
	}

	y := r.pdf.GetY() + 2
	r.pdf.Line(15, y, 15+pageWidth, y)
	r.pdf.SetY(y + 3)
	r.updateFont()
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph, ast.KindTextBlock:
		if !entering && n.Parent() != nil && n.Parent().Kind() != ast.KindListItem {
			r.pdf.Ln(lineHeight + 2)
		}
	case ast.KindText:
		if entering {
			t := n.(*ast.Text)
			r.write(string(t.Segment.Value(r.source)))
			if t.SoftLineBreak() || t.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case ast.KindString:
		if entering {
			r.write(string(n.(*ast.String).Value))
		}
	case ast.KindEmphasis:
		if n.(*ast.Emphasis).Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case ast.KindCodeSpan:
		if entering {
			r.write(string(n.Text(r.source)))
			return ast.WalkSkipChildren, nil
		}
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			r.renderCodeBlock(n.Lines())
			return ast.WalkSkipChildren, nil
		}
	case ast.KindList:
		return r.handleList(n.(*ast.List), entering)
	case ast.KindListItem:
		return r.handleListItem(entering)
	case ast.KindThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 15+pageWidth, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case extast.KindTable:
		if entering {
			r.renderTable(collectRows(n, r.source))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(3)
		size := 11.0
		switch n.Level {
		case 1:
			size = 14
		case 2:
			size = 13
		case 3:
			size = 12
		}
		r.pdf.SetFont(fontFamily, "B", size)
	} else {
		r.pdf.Ln(lineHeight + 2)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleList(n *ast.List, entering bool) (ast.WalkStatus, error) {
	if entering {
		if r.listLevel > 0 {
			r.pdf.Ln(lineHeight)
		}
		r.listLevel++
		ordinal := 0
		if n.IsOrdered() {
			ordinal = n.Start
			if ordinal == 0 {
				ordinal = 1
			}
		}
		r.ordinals = append(r.ordinals, ordinal)
	} else {
		r.listLevel--
		r.ordinals = r.ordinals[:len(r.ordinals)-1]
		if r.listLevel == 0 {
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleListItem(entering bool) (ast.WalkStatus, error) {
	if !entering {
		r.pdf.Ln(lineHeight)
		return ast.WalkContinue, nil
	}

	indent := float64(r.listLevel) * 5.0
	r.pdf.SetX(15 + indent)

	last := len(r.ordinals) - 1
	if r.ordinals[last] > 0 {
		r.write(fmt.Sprintf("%d. ", r.ordinals[last]))
		r.ordinals[last]++
	} else {
		r.write("- ")
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) renderCodeBlock(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Courier", "", 9)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.pdf.MultiCell(0, lineHeight, r.tr(strings.TrimRight(string(line.Value(r.source)), "\n")), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.updateFont()
	r.pdf.Ln(2)
}

// renderCitedRecords lists each record cited in content once, in citation order
func (r *pdfRenderer) renderCitedRecords(content string, records []models.PatientRecord) {
	if len(records) == 0 {
		return
	}

	resolver := citation.NewResolver(records)
	rows := [][]string{{"#", "Type", "Timestamp", "Record"}}
	seen := make(map[string]bool)
	for _, id := range markup.CitationIDs(content) {
		if seen[id] {
			continue
		}
		seen[id] = true
		rec, ok := resolver.Record(id)
		if !ok {
			continue
		}
		rows = append(rows, []string{id, string(rec.Type), rec.Timestamp, flatten(rec.Content)})
	}
	if len(rows) == 1 {
		return
	}

	r.pdf.Ln(4)
	r.pdf.SetFont(fontFamily, "B", 11)
	r.write("Cited Records")
	r.pdf.Ln(lineHeight + 1)
	r.renderTable(rows)
}

func collectRows(n ast.Node, source []byte) [][]string {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var row []string
			for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row = append(row, string(cell.Text(source)))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// renderTable draws rows with the first row as header. The last column
// takes the width the others leave.
func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const fontSize = 8.0
	const cellLine = 4.0
	numCols := len(rows[0])
	widths := r.columnWidths(rows, numCols, fontSize)

	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(fontFamily, style, fontSize)

		cells := make([][]string, numCols)
		maxLines := 1
		for j := 0; j < numCols; j++ {
			value := ""
			if j < len(row) {
				value = row[j]
			}
			cells[j] = r.pdf.SplitText(r.tr(value), widths[j]-2)
			if len(cells[j]) > maxLines {
				maxLines = len(cells[j])
			}
		}

		height := float64(maxLines)*cellLine + 2
		_, pageHeight := r.pdf.GetPageSize()
		_, _, _, bottom := r.pdf.GetMargins()
		if r.pdf.GetY()+height > pageHeight-bottom {
			r.pdf.AddPage()
		}

		x, y := 15.0, r.pdf.GetY()
		for j := 0; j < numCols; j++ {
			if i == 0 {
				r.pdf.Rect(x, y, widths[j], height, "FD")
			} else {
				r.pdf.Rect(x, y, widths[j], height, "D")
			}
			for k, line := range cells[j] {
				r.pdf.SetXY(x+1, y+1+float64(k)*cellLine)
				r.pdf.CellFormat(widths[j]-2, cellLine, line, "", 0, "L", false, 0, "")
			}
			x += widths[j]
		}
		r.pdf.SetXY(15, y+height)
	}

	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.updateFont()
}

func (r *pdfRenderer) columnWidths(rows [][]string, numCols int, fontSize float64) []float64 {
	widths := make([]float64, numCols)
	if numCols == 1 {
		widths[0] = pageWidth
		return widths
	}

	r.pdf.SetFont(fontFamily, "B", fontSize)
	used := 0.0
	for j := 0; j < numCols-1; j++ {
		for _, row := range rows {
			if j < len(row) {
				if w := r.pdf.GetStringWidth(r.tr(row[j])) + 4; w > widths[j] {
					widths[j] = w
				}
			}
		}
		if widths[j] > pageWidth/4 {
			widths[j] = pageWidth / 4
		}
		used += widths[j]
	}
	widths[numCols-1] = pageWidth - used
	return widths
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.Join(strings.Fields(s), " ")
}
