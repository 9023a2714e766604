package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/goccy/go-json"

	"chatmemo/internal/models"
)

func renderJSON(buf *bytes.Buffer, session *models.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func renderCSV(buf *bytes.Buffer, session *models.Session) error {
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"timestamp", "role", "content"}); err != nil {
		return err
	}
	for _, m := range session.Messages {
		row := []string{
			m.Timestamp.Format(time.RFC3339Nano),
			string(m.Role),
			strings.ReplaceAll(m.Content, "\n", " "),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

const pdfFallbackTitle = "Conversación"

func renderPDF(buf *bytes.Buffer, session *models.Session) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	// core fonts are cp1252; translate so Spanish accents survive
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := session.Title
	if title == "" {
		title = pdfFallbackTitle
	}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(pdfFallbackTitle+": "+title), "", "C", false)
	pdf.Ln(3)

	meta := [][2]string{
		{"ID", session.ID},
		{"Título", title},
		{"Mensajes", fmt.Sprintf("%d", len(session.Messages))},
		{"Actualizado", session.UpdatedAt.Format(time.RFC3339)},
	}
	pdf.SetDrawColor(128, 128, 128)
	for i, row := range meta {
		fill := i == 0
		pdf.SetFillColor(211, 211, 211)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 7, tr(row[0]), "1", 0, "L", fill, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(110, 7, tr(row[1]), "1", 1, "L", fill, 0, "")
	}
	pdf.Ln(5)

	for _, m := range session.Messages {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(pdf.GetStringWidth(tr(strings.ToUpper(string(m.Role))))+1, 7, tr(strings.ToUpper(string(m.Role))), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 7, tr(" · "+m.Timestamp.Format(time.RFC3339)), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 5, tr(m.Content), "", "L", false)
		pdf.Ln(2)
	}
	return pdf.Output(buf)
}
