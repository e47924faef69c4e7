package notify

import (
	"bytes"
	"html/template"
)

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f6f8;font-family:Helvetica,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" style="padding:24px 0;">
    <tr><td align="center">
      <table width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:#10b981;color:#ffffff;padding:20px 32px;font-size:22px;font-weight:bold;">{{.Shop}}</td></tr>
        <tr><td style="padding:32px;">
          <h1 style="margin:0 0 16px;font-size:20px;color:#111827;">{{.Title}}</h1>
          <p style="margin:0 0 16px;color:#374151;">{{.Intro}} <strong>{{.Highlight}}</strong></p>
          {{range .Paragraphs}}<p style="margin:0 0 12px;color:#374151;">{{.}}</p>
          {{end}}
        </td></tr>
        <tr><td style="padding:16px 32px;background:#f9fafb;color:#6b7280;font-size:12px;">
          {{.Footer}}{{if .Support}}<br>Support: {{.Support}}{{end}}
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

type emailView struct {
	Shop       string
	Title      string
	Intro      string
	Highlight  string
	Paragraphs []string
	Footer     string
	Support    string
}

func renderHTML(v emailView) (string, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
