package notify

import (
	"bytes"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

// RenderInvoice produces the PDF invoice attached to payment confirmations.
func RenderInvoice(b *Bundle) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Invoice", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Payment Invoice")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	row("Reference:", b.Contribution.Reference)
	row("Member:", b.Member.FullName)
	row("Contribution:", b.Type.Name)
	row("Amount:", models.FormatRands(b.Contribution.AmountDueCents))
	row("Status:", string(b.Contribution.Status))
	if b.Payment != nil {
		row("Method:", string(b.Payment.Method))
		if b.Payment.Receipt != "" {
			row("Receipt:", b.Payment.Receipt)
		}
	}
	row("Date:", time.Now().Format("02 January 2006"))

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "This invoice was generated automatically. Keep it for your records.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
