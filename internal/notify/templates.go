package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// emailData is the view model every email template renders.
type emailData struct {
	BuyerName    string
	OrderID      string
	ProductName  string
	Amount       string
	EbookURL     string
	SupportEmail string
	AdminLink    string
}

const layoutTmpl = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2937;max-width:600px;margin:0 auto">
<h2 style="color:#0f766e">{{.ProductName}}</h2>
{{template "body" .}}
<p style="font-size:12px;color:#6b7280">Butuh bantuan? Balas email ini atau hubungi {{.SupportEmail}}.</p>
</body></html>{{end}}`

var bodies = map[string]string{
	"confirmation": `{{define "body"}}<p>Halo {{.BuyerName}},</p>
<p>Terima kasih telah memesan <strong>{{.ProductName}}</strong>.</p>
<p>Order ID: <strong>{{.OrderID}}</strong><br>Total: <strong>{{.Amount}}</strong></p>
<p>Silakan selesaikan pembayaran dan kirim bukti transfer melalui <a href="{{.AdminLink}}">WhatsApp</a>.
E-book akan dikirim setelah pembayaran terverifikasi.</p>{{end}}`,

	"delivery": `{{define "body"}}<p>Halo {{.BuyerName}},</p>
<p>Pembayaran untuk Order ID <strong>{{.OrderID}}</strong> sudah kami verifikasi.</p>
<p><a href="{{.EbookURL}}" style="background:#0f766e;color:#fff;padding:10px 18px;text-decoration:none;border-radius:4px">Download E-book</a></p>
<p>Jika tombol tidak berfungsi, buka link berikut: {{.EbookURL}}</p>{{end}}`,

	"rejection": `{{define "body"}}<p>Halo {{.BuyerName}},</p>
<p>Mohon maaf, pembayaran untuk Order ID <strong>{{.OrderID}}</strong> belum dapat kami verifikasi.</p>
<p>Jika Anda sudah melakukan transfer, silakan kirim bukti transfer melalui <a href="{{.AdminLink}}">WhatsApp</a>.</p>{{end}}`,

	"reminder": `{{define "body"}}<p>Halo {{.BuyerName}},</p>
<p>Pesanan <strong>{{.OrderID}}</strong> ({{.Amount}}) masih menunggu pembayaran.</p>
<p>Selesaikan pembayaran dan kirim bukti transfer melalui <a href="{{.AdminLink}}">WhatsApp</a> agar e-book dapat segera dikirim.</p>{{end}}`,
}

// templates holds one parsed template per email kind.
type templates map[string]*template.Template

func parseTemplates() (templates, error) {
	out := make(templates, len(bodies))
	for name, body := range bodies {
		t, err := template.New(name).Parse(layoutTmpl)
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := t.Parse(body); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func (t templates) render(name string, data emailData) (string, error) {
	tmpl, ok := t[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
