package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVContentType is the media type of WriteCSV output.
const CSVContentType = "text/csv; charset=UTF-8"

var csvHeader = []string{"DATA", "DESCRICAO", "CARTAO", "VALOR", "PONTOS", "STATUS", "PREVISAO_CREDITO"}

// WriteCSV writes st as semicolon separated values with a header row.
func WriteCSV(w io.Writer, st Statement) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, l := range st.Lines {
		record := []string{
			l.PurchaseDate.String(),
			l.Description,
			l.CardName,
			formatAmount(l.Amount),
			formatPoints(l.Points),
			string(l.Status),
			l.DueDate.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
