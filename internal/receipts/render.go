package receipts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/farellandr/duesledger/internal/models"
	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

// Document is everything printed on a receipt.
type Document struct {
	ReceiptNumber    string
	OrganizationName string
	MemberName       string
	MemberEmail      string
	Amount           string
	Currency         string
	ReferenceNumber  string
	PaymentID        string
	PaidAt           time.Time
	IssuedAt         time.Time
	QRData           string
}

func NewDocument(payment *models.Payment, receiptNumber, qrData string, issuedAt time.Time) Document {
	doc := Document{
		ReceiptNumber:   receiptNumber,
		Amount:          payment.Amount.StringFixed(2),
		Currency:        payment.Currency,
		ReferenceNumber: payment.ReferenceNumber,
		PaymentID:       payment.ID.String(),
		PaidAt:          issuedAt,
		IssuedAt:        issuedAt,
		QRData:          qrData,
	}
	if payment.PaymentDate != nil {
		doc.PaidAt = *payment.PaymentDate
	}
	if payment.Organization != nil {
		doc.OrganizationName = payment.Organization.Name
	}
	if payment.Member != nil {
		doc.MemberName = payment.Member.FullName
		doc.MemberEmail = payment.Member.Email
	}
	return doc
}

type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// PDFRenderer draws a single A4 page with the payment details and a QR code.
type PDFRenderer struct{}

func (PDFRenderer) Render(doc Document) ([]byte, error) {
	pdf, err := layout(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// layout draws the receipt. The core fonts are cp1252, so text is translated from
// UTF-8 and characters outside that code page print as '.'.
func layout(doc Document) (*fpdf.Fpdf, error) {
	qrImage, err := qrcode.Encode(doc.QRData, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Receipt "+doc.ReceiptNumber, true)
	pdf.SetCreationDate(doc.IssuedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(doc.OrganizationName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "Payment receipt", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Receipt number", doc.ReceiptNumber},
		{"Member", doc.MemberName},
		{"Email", doc.MemberEmail},
		{"Amount", doc.Currency + " " + doc.Amount},
		{"Reference", doc.ReferenceNumber},
		{"Payment date", doc.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")},
		{"Payment id", doc.PaymentID},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(row[1]), "", 1, "L", false, 0, "")
	}

	imageName := "qr-" + doc.ReceiptNumber
	options := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(imageName, options, bytes.NewReader(qrImage))
	pdf.ImageOptions(imageName, 150, 20, 45, 45, false, options, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "Issued "+doc.IssuedAt.UTC().Format(time.RFC1123), "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	return pdf, nil
}
