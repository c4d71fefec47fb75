package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/AnTengye/rollingquote/model"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
{{- if .Internal}}
<h2>New paid translation order</h2>
<p>Customer: {{.Customer}}</p>
{{- else}}
<h2>Thank you for your order</h2>
<p>We have received your payment and our translators will be in touch shortly.</p>
{{- end}}
<table cellpadding="4">
<tr><td>Order</td><td>{{.OrderID}}</td></tr>
<tr><td>Languages</td><td>{{.Languages}}</td></tr>
<tr><td>Total words</td><td>{{.Words}}</td></tr>
<tr><td>Subject</td><td>{{.Subject}}</td></tr>
<tr><td>Turnaround</td><td>{{.Turnaround}}</td></tr>
<tr><td>Certified</td><td>{{if .Certified}}yes{{else}}no{{end}}</td></tr>
<tr><td>Amount paid</td><td>{{.Amount}}</td></tr>
</table>
</body>
</html>`))

var receivedTmpl = template.Must(template.New("received").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
{{- if .Internal}}
<h2>New translation request</h2>
<p>Customer: {{.Customer}}</p>
{{- else}}
<h2>We received your request</h2>
<p>To complete your order, please finish the payment you just started. We will email you once it is confirmed.</p>
{{- end}}
<table cellpadding="4">
<tr><td>Order</td><td>{{.OrderID}}</td></tr>
<tr><td>Languages</td><td>{{.Languages}}</td></tr>
<tr><td>Total words</td><td>{{.Words}}</td></tr>
<tr><td>Subject</td><td>{{.Subject}}</td></tr>
<tr><td>Turnaround</td><td>{{.Turnaround}}</td></tr>
<tr><td>Certified</td><td>{{if .Certified}}yes{{else}}no{{end}}</td></tr>
<tr><td>Estimate</td><td>{{.Amount}}</td></tr>
</table>
</body>
</html>`))

type confirmationView struct {
	Internal   bool
	Customer   string
	OrderID    string
	Languages  string
	Words      int
	Subject    model.Subject
	Turnaround model.Turnaround
	Certified  bool
	Amount     string
}

// Confirmation composes the customer and operations emails for an order,
// both the receipt sent at checkout and the confirmation sent once paid.
type Confirmation struct {
	OpsAddress    string
	AttachReceipt bool
}

// Recipients lists every address that should hear about o, customer first.
// customerFallback is used when the order has no contact email.
func (c Confirmation) Recipients(o *model.Order, customerFallback string) []string {
	var out []string
	customer := o.ContactEmail
	if customer == "" {
		customer = customerFallback
	}
	if customer != "" {
		out = append(out, customer)
	}
	if c.OpsAddress != "" && !strings.EqualFold(c.OpsAddress, customer) {
		out = append(out, c.OpsAddress)
	}
	return out
}

// Messages renders one message per recipient in to.
func (c Confirmation) Messages(o *model.Order, customer string, to []string) ([]Message, error) {
	view := confirmationView{
		Customer:   customer,
		OrderID:    o.ID,
		Languages:  languageList(o.Pairs),
		Words:      o.TotalWords,
		Subject:    o.Options.Subject,
		Turnaround: o.Options.Turnaround,
		Certified:  o.Options.Certified,
		Amount:     formatAmount(paidAmount(o), o.Currency),
	}

	var receipt []byte
	msgs := make([]Message, 0, len(to))
	for _, addr := range to {
		v := view
		v.Internal = addr == c.OpsAddress
		var buf bytes.Buffer
		if err := confirmationTmpl.Execute(&buf, v); err != nil {
			return nil, fmt.Errorf("render confirmation: %w", err)
		}

		m := Message{To: addr, HTML: buf.String()}
		if v.Internal {
			m.Subject = fmt.Sprintf("Paid order %s", o.ID)
		} else {
			m.Subject = "Your translation order is confirmed"
			if c.AttachReceipt {
				if receipt == nil {
					var err error
					if receipt, err = RenderReceipt(o, time.Now()); err != nil {
						return nil, err
					}
				}
				m.Attachments = []Attachment{{
					Filename:    "receipt-" + o.ID + ".pdf",
					ContentType: "application/pdf",
					Content:     receipt,
				}}
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ReceivedMessages renders the pre-payment receipt for a pending order, one
// message per recipient in to.
func (c Confirmation) ReceivedMessages(o *model.Order, to []string) ([]Message, error) {
	view := confirmationView{
		Customer:   o.ContactEmail,
		OrderID:    o.ID,
		Languages:  languageList(o.Pairs),
		Words:      o.TotalWords,
		Subject:    o.Options.Subject,
		Turnaround: o.Options.Turnaround,
		Certified:  o.Options.Certified,
		Amount:     formatAmount(o.AmountCents, o.Currency),
	}

	msgs := make([]Message, 0, len(to))
	for _, addr := range to {
		v := view
		v.Internal = addr == c.OpsAddress
		var buf bytes.Buffer
		if err := receivedTmpl.Execute(&buf, v); err != nil {
			return nil, fmt.Errorf("render receipt email: %w", err)
		}
		m := Message{To: addr, HTML: buf.String()}
		if v.Internal {
			m.Subject = fmt.Sprintf("New translation request %s", o.ID)
		} else {
			m.Subject = fmt.Sprintf("We received your request %s", o.ID)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// RenderReceipt draws a one-page PDF receipt for a paid order.
func RenderReceipt(o *model.Order, issued time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 8, "Receipt", "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.MultiCell(0, 5, "Issued "+issued.UTC().Format("2006-01-02"), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	rows := [][2]string{
		{"Order", o.ID},
		{"Languages", languageList(o.Pairs)},
		{"Total words", fmt.Sprintf("%d", o.TotalWords)},
		{"Subject", string(o.Options.Subject)},
		{"Turnaround", string(o.Options.Turnaround)},
		{"Amount paid", formatAmount(paidAmount(o), o.Currency)},
	}
	if o.PaymentIntentID != "" {
		rows = append(rows, [2]string{"Payment reference", o.PaymentIntentID})
	}
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 6, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, r[1], "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func paidAmount(o *model.Order) int64 {
	if o.AmountPaidCents != nil {
		return *o.AmountPaidCents
	}
	return o.AmountCents
}

func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "usd"
	}
	return decimal.New(cents, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

func languageList(pairs []model.LanguagePair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
