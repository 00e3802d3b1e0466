package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gomono"
)

// PDFContentType is the media type of WritePDF output.
const PDFContentType = "application/pdf"

const (
	fontFamily   = "gomono"
	fontSize     = 7.5
	marginLeft   = 30.0
	marginTop    = 40.0
	leading      = 12.0
	linesPerPage = 60
)

// WritePDF renders st as a paginated text PDF in a monospaced font so the
// columns line up.
func WritePDF(w io.Writer, st Statement) error {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetInfo(gopdf.PdfInfo{Title: st.Title, Creator: "loyalty-engine"})

	if err := pdf.AddTTFFontData(fontFamily, gomono.TTF); err != nil {
		return fmt.Errorf("loading pdf font: %w", err)
	}

	pages := paginate(statementText(st), linesPerPage)
	for i, lines := range pages {
		pdf.AddPage()
		if err := pdf.SetFont(fontFamily, "", fontSize); err != nil {
			return fmt.Errorf("setting pdf font: %w", err)
		}

		y := marginTop
		for _, line := range lines {
			if err := writeLine(&pdf, marginLeft, y, line); err != nil {
				return err
			}
			y += leading
		}
		if err := writeLine(&pdf, gopdf.PageSizeA4.W-100, gopdf.PageSizeA4.H-30, pageFooter(i+1, len(pages))); err != nil {
			return err
		}
	}

	if err := pdf.Write(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

func writeLine(pdf *gopdf.GoPdf, x, y float64, text string) error {
	pdf.SetXY(x, y)
	if err := pdf.Cell(nil, pdfSafe(text)); err != nil {
		return fmt.Errorf("writing pdf line: %w", err)
	}
	return nil
}

func statementText(st Statement) []string {
	lines := []string{
		st.Title,
		"",
		fmt.Sprintf("%-10s  %-28s  %-16s  %12s  %14s  %-9s  %-10s",
			"DATA", "DESCRICAO", "CARTAO", "VALOR", "PONTOS", "STATUS", "CREDITO"),
	}
	for _, l := range st.Lines {
		lines = append(lines, fmt.Sprintf("%-10s  %-28s  %-16s  %12s  %14s  %-9s  %-10s",
			l.PurchaseDate, truncate(l.Description, 28), truncate(l.CardName, 16),
			formatAmount(l.Amount), formatPoints(l.Points), l.Status, l.DueDate))
	}
	lines = append(lines, "",
		fmt.Sprintf("Total: R$ %s  Pontos: %s  Compras: %d",
			formatAmount(st.TotalAmount), formatPoints(st.TotalPoints), len(st.Lines)))
	return lines
}

func paginate(lines []string, size int) [][]string {
	var pages [][]string
	for len(lines) > size {
		pages = append(pages, lines[:size])
		lines = lines[size:]
	}
	return append(pages, lines)
}

func pageFooter(page, total int) string {
	return fmt.Sprintf("Pagina %d/%d", page, total)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "~"
}

// pdfSafe keeps the runes the embedded font has glyphs for (Latin-1 and
// Latin Extended-A). Control characters become spaces, anything else '?'.
func pdfSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || (r >= 0x7F && r < 0xA0):
			b.WriteByte(' ')
		case r <= 0x17F:
			b.WriteRune(r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
