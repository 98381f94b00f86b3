package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"
)

type emailTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const layoutHTML = `{{define "layout"}}<div style="font-family: 'Segoe UI', Tahoma, sans-serif; max-width: 600px; margin: 0 auto; background-color: #faf8f5; border-radius: 12px; overflow: hidden;">
  <div style="background: #7c5e99; padding: 30px; text-align: center;">
    <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 300;">{{.Practitioner}}</h1>
    <p style="color: #f0ebf5; margin: 5px 0 0; font-size: 14px;">Radiestesia Terapêutica</p>
  </div>
  <div style="padding: 30px; color: #333;">
    <p>Olá{{if .Name}}, {{.Name}}{{end}}!</p>
    {{template "content" .}}
    <p>Com carinho,<br>{{.Practitioner}}</p>
  </div>
  <div style="padding: 20px 30px; background-color: #f0ebe6; text-align: center; font-size: 12px; color: #888;">
    <p style="margin: 0;">Este é um email automático. Em caso de dúvidas, responda a esta mensagem.</p>
  </div>
</div>{{end}}`

type templateSource struct {
	subject string
	text    string
	html    string
}

var sources = map[Kind]templateSource{
	KindConfirmation: {
		subject: `Agendamento confirmado - {{.Date}} às {{.StartTime}}`,
		text: `Olá{{if .Name}}, {{.Name}}{{end}}!

Seu agendamento foi confirmado.
Serviço: {{.Service}}
Data: {{.Date}}
Horário: {{.StartTime}} às {{.EndTime}}
Pagamento: {{.Method}} ({{.Total}})
{{- if .MeetLink}}
Link da sessão: {{.MeetLink}}{{end}}
{{- if .HasRemaining}}

Lembrete: o restante de {{.Remaining}} via PIX deve ser pago até {{.Due}}.{{end}}

Com carinho,
{{.Practitioner}}
`,
		html: `{{define "content"}}<h2 style="color: #7c5e99;">Agendamento confirmado!</h2>
<p>Seu agendamento foi realizado com sucesso. Confira os detalhes:</p>
<div style="background-color: white; border-radius: 8px; padding: 20px; margin: 20px 0; border-left: 4px solid #7c5e99;">
  <p><strong>Serviço:</strong> {{.Service}}</p>
  <p><strong>Data:</strong> {{.Date}}</p>
  <p><strong>Horário:</strong> {{.StartTime}} às {{.EndTime}}</p>
  <p><strong>Pagamento:</strong> {{.Method}} ({{.Total}})</p>
  {{if .MeetLink}}<p><strong>Link da sessão:</strong> <a href="{{.MeetLink}}" style="color: #7c5e99;">{{.MeetLink}}</a></p>{{end}}
</div>
{{if .HasRemaining}}<div style="background-color: #fff3cd; border-radius: 8px; padding: 15px;">
  <p style="margin: 0;"><strong>Lembrete:</strong> o segundo pagamento de {{.Remaining}} via PIX deve ser realizado até {{.Due}}.</p>
</div>{{end}}
<p>Estou muito feliz em poder te ajudar nessa jornada!</p>{{end}}`,
	},
	KindPaymentReminder: {
		subject: `Lembrete de pagamento - sessão de {{.Date}}`,
		text: `Olá{{if .Name}}, {{.Name}}{{end}}!

O segundo pagamento da sua sessão ainda está pendente.
Sessão: {{.Date}} às {{.StartTime}}
Valor pendente: {{.Remaining}}
Prazo: {{.Due}}

Pague em: {{.ManageURL}}

Com carinho,
{{.Practitioner}}
`,
		html: `{{define "content"}}<h2 style="color: #7c5e99;">Lembrete de pagamento</h2>
<p>O segundo pagamento da sua sessão ainda está pendente:</p>
<div style="background-color: white; border-radius: 8px; padding: 20px; margin: 20px 0; border-left: 4px solid #e6a817;">
  <p><strong>Sessão:</strong> {{.Date}} às {{.StartTime}}</p>
  <p><strong>Valor pendente:</strong> {{.Remaining}}</p>
  <p><strong>Prazo:</strong> {{.Due}}</p>
</div>
<p style="text-align: center;"><a href="{{.ManageURL}}" style="display: inline-block; background: #7c5e99; color: white; text-decoration: none; padding: 12px 30px; border-radius: 8px;">Realizar pagamento</a></p>{{end}}`,
	},
	KindSessionReminder: {
		subject: `Lembrete: sua sessão é {{.Until}}`,
		text: `Olá{{if .Name}}, {{.Name}}{{end}}!

Sua sessão de {{.Service}} é {{.Until}}.
Data: {{.Date}}
Horário: {{.StartTime}}
{{- if .MeetLink}}
Link: {{.MeetLink}}{{end}}

Com carinho,
{{.Practitioner}}
`,
		html: `{{define "content"}}<h2 style="color: #7c5e99;">Lembrete da sessão</h2>
<p>Sua sessão de {{.Service}} é <strong>{{.Until}}</strong>!</p>
<div style="background-color: white; border-radius: 8px; padding: 20px; margin: 20px 0; border-left: 4px solid #7c5e99;">
  <p><strong>Data:</strong> {{.Date}}</p>
  <p><strong>Horário:</strong> {{.StartTime}}</p>
  {{if .MeetLink}}<p><strong>Link:</strong> <a href="{{.MeetLink}}" style="color: #7c5e99;">{{.MeetLink}}</a></p>{{end}}
</div>
<p>Prepare-se para um momento especial de cuidado e equilíbrio!</p>{{end}}`,
	},
	KindCancellation: {
		subject: `Cancelamento confirmado - {{.Date}}`,
		text: `Olá{{if .Name}}, {{.Name}}{{end}}!

Seu agendamento de {{.Date}} às {{.StartTime}} foi cancelado.
{{if .HasRefund}}Reembolso: {{.Refund}} (processado em até 5 dias úteis).{{else}}Cancelamento com menos de 12h de antecedência: sem direito a reembolso.{{end}}

Quando desejar, é só agendar novamente.

Com carinho,
{{.Practitioner}}
`,
		html: `{{define "content"}}<h2 style="color: #7c5e99;">Cancelamento confirmado</h2>
<p>Seu agendamento foi cancelado:</p>
<div style="background-color: white; border-radius: 8px; padding: 20px; margin: 20px 0; border-left: 4px solid #dc3545;">
  <p><strong>Data cancelada:</strong> {{.Date}} às {{.StartTime}}</p>
  {{if .HasRefund}}<p><strong>Reembolso:</strong> {{.Refund}} (processado em até 5 dias úteis)</p>{{else}}<p><strong>Reembolso:</strong> cancelamento realizado com menos de 12h de antecedência, sem direito a reembolso conforme nossa política.</p>{{end}}
</div>
<p>Espero te ver em breve! Quando desejar, é só agendar novamente.</p>{{end}}`,
	},
	KindFeedback: {
		subject: `Como foi sua sessão?`,
		text: `Olá{{if .Name}}, {{.Name}}{{end}}!

Espero que sua sessão de {{.Date}} tenha sido uma experiência especial.
Conte como você se sentiu: {{.FeedbackURL}}

Com carinho,
{{.Practitioner}}
`,
		html: `{{define "content"}}<h2 style="color: #7c5e99;">Como foi sua sessão?</h2>
<p>Espero que sua sessão de {{.Date}} tenha sido uma experiência especial!</p>
<p>Seu feedback me ajuda a melhorar cada vez mais o atendimento.</p>
<p style="text-align: center;"><a href="{{.FeedbackURL}}" style="display: inline-block; background: #7c5e99; color: white; text-decoration: none; padding: 12px 30px; border-radius: 8px;">Deixar feedback</a></p>{{end}}`,
	},
}

var catalog = compileCatalog()

func compileCatalog() map[Kind]emailTemplate {
	layout := htmltemplate.Must(htmltemplate.New("layout").Option("missingkey=error").Parse(layoutHTML))
	out := make(map[Kind]emailTemplate, len(sources))
	for kind, src := range sources {
		name := string(kind)
		out[kind] = emailTemplate{
			subject: texttemplate.Must(texttemplate.New(name + ".subject").Option("missingkey=error").Parse(src.subject)),
			text:    texttemplate.Must(texttemplate.New(name + ".text").Option("missingkey=error").Parse(src.text)),
			html:    htmltemplate.Must(htmltemplate.Must(layout.Clone()).Parse(src.html)),
		}
	}
	return out
}

// RendererConfig carries the branding and links templates need.
type RendererConfig struct {
	PractitionerName string
	PublicBaseURL    string
	Location         *time.Location
}

// Renderer turns a snapshot into a Portuguese email.
type Renderer struct {
	practitioner string
	baseURL      string
	loc          *time.Location
	now          func() time.Time
}

func NewRenderer(cfg RendererConfig) *Renderer {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	name := strings.TrimSpace(cfg.PractitionerName)
	if name == "" {
		name = DefaultFromName
	}
	return &Renderer{
		practitioner: name,
		baseURL:      strings.TrimRight(cfg.PublicBaseURL, "/"),
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock overrides the clock used for relative phrases.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	if now != nil {
		r.now = now
	}
	return r
}

// view is the flattened, pre-formatted template input.
type view struct {
	Practitioner string
	Name         string
	Service      string
	Date         string
	StartTime    string
	EndTime      string
	Method       string
	Total        string
	Remaining    string
	HasRemaining bool
	Due          string
	MeetLink     string
	Refund       string
	HasRefund    bool
	Until        string
	ManageURL    string
	FeedbackURL  string
}

// Render builds the email for kind addressed to the snapshot's client.
func (r *Renderer) Render(kind Kind, snap Snapshot) (EmailMessage, error) {
	tmpl, ok := catalog[kind]
	if !ok {
		return EmailMessage{}, fmt.Errorf("notify: unknown template %q", kind)
	}
	if strings.TrimSpace(snap.ClientEmail) == "" {
		return EmailMessage{}, fmt.Errorf("notify: recipient email required")
	}
	v := r.view(snap)

	var subject, text, html bytes.Buffer
	if err := tmpl.subject.Execute(&subject, v); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render subject: %w", err)
	}
	if err := tmpl.text.Execute(&text, v); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render text: %w", err)
	}
	if err := tmpl.html.ExecuteTemplate(&html, "layout", v); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render html: %w", err)
	}
	return EmailMessage{
		To:      snap.ClientEmail,
		ToName:  snap.ClientName,
		Subject: subject.String(),
		Body:    text.String(),
		HTML:    html.String(),
	}, nil
}

func (r *Renderer) view(snap Snapshot) view {
	start := snap.StartTime.In(r.loc)
	v := view{
		Practitioner: r.practitioner,
		Name:         strings.TrimSpace(snap.ClientName),
		Service:      snap.ServiceTitle,
		Date:         formatLongDate(start),
		StartTime:    start.Format("15:04"),
		EndTime:      snap.EndTime.In(r.loc).Format("15:04"),
		Method:       methodLabel(snap.PaymentMethod),
		Total:        FormatBRL(snap.TotalAmount),
		Remaining:    FormatBRL(snap.RemainingAmount),
		HasRemaining: snap.RemainingAmount > 0,
		MeetLink:     snap.MeetLink,
		Refund:       FormatBRL(snap.RefundAmount),
		HasRefund:    snap.RefundAmount > 0,
		Until:        untilLabel(r.now().In(r.loc), start),
		ManageURL:    r.baseURL + "/agendamentos/" + snap.AppointmentID,
		FeedbackURL:  r.baseURL + "/feedback/" + snap.AppointmentID,
	}
	if v.Service == "" {
		v.Service = "Radiestesia Terapêutica"
	}
	if snap.SecondPaymentDue != nil {
		due := snap.SecondPaymentDue.In(r.loc)
		v.Due = due.Format("02/01/2006") + " às " + due.Format("15:04")
	} else {
		v.Due = "1 hora antes da sessão"
	}
	return v
}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func formatLongDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func methodLabel(method string) string {
	switch strings.ToUpper(method) {
	case "PIX":
		return "PIX"
	case "CARD":
		return "Cartão"
	default:
		return method
	}
}

func untilLabel(now, start time.Time) string {
	d := start.Sub(now)
	if d <= 0 {
		return "agora"
	}
	if d < time.Hour {
		return fmt.Sprintf("em %d minutos", int(d.Minutes()))
	}
	clock := start.Format("15:04")
	day := start.Format("2006-01-02")
	switch {
	case day == now.Format("2006-01-02"):
		return "hoje às " + clock
	case day == now.AddDate(0, 0, 1).Format("2006-01-02"):
		return "amanhã às " + clock
	default:
		return "em " + formatLongDate(start) + " às " + clock
	}
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	digits := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, b.String(), cents%100)
}
