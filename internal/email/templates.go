package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/db"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

// AppointmentDetails holds the values the client-facing templates render.
type AppointmentDetails struct {
	BusinessName string
	ClientName   string
	ServiceName  string
	Date         string
	TimeRange    string
	Notes        string
}

var (
	confirmationSubject = template.Must(template.New("confirmation_subject").Parse(
		`Agendamento recebido - {{.BusinessName}}`))
	confirmationBody = template.Must(template.New("confirmation_body").Parse(
		`Olá{{with .ClientName}}, {{.}}{{end}}!

Recebemos o seu agendamento.

Serviço: {{.ServiceName}}
Data: {{.Date}}
Horário: {{.TimeRange}}
{{- with .Notes}}
Observações: {{.}}{{end}}

{{.BusinessName}}
`))

	reminderSubject = template.Must(template.New("reminder_subject").Parse(
		`Lembrete: {{.ServiceName}} em {{.Date}} - {{.BusinessName}}`))
	reminderBody = template.Must(template.New("reminder_body").Parse(
		`Olá{{with .ClientName}}, {{.}}{{end}}!

Este é um lembrete do seu horário.

Serviço: {{.ServiceName}}
Data: {{.Date}}
Horário: {{.TimeRange}}

Se não puder comparecer, avise com antecedência.

{{.BusinessName}}
`))

	cancellationSubject = template.Must(template.New("cancellation_subject").Parse(
		`Agendamento cancelado - {{.BusinessName}}`))
	cancellationBody = template.Must(template.New("cancellation_body").Parse(
		`Olá{{with .ClientName}}, {{.}}{{end}}!

O seu agendamento foi cancelado.

Serviço: {{.ServiceName}}
Data: {{.Date}}
Horário: {{.TimeRange}}

{{.BusinessName}}
`))
)

// DetailsFor builds template values for an appointment of owner.
func DetailsFor(owner db.Owner, appt db.Appointment) AppointmentDetails {
	date, timeRange := FormatSchedule(appt)
	details := AppointmentDetails{
		BusinessName: strings.TrimSpace(owner.Name),
		ClientName:   strings.TrimSpace(appt.ClientName.String),
		ServiceName:  strings.TrimSpace(appt.ServiceName.String),
		Date:         date,
		TimeRange:    timeRange,
		Notes:        strings.TrimSpace(appt.Notes.String),
	}
	if details.BusinessName == "" {
		details.BusinessName = "Seu estabelecimento"
	}
	if details.ServiceName == "" {
		details.ServiceName = "Atendimento"
	}
	return details
}

// FormatSchedule renders a stored appointment as DD/MM/YYYY and "HH:MM - HH:MM".
func FormatSchedule(appt db.Appointment) (string, string) {
	date := appt.AppointmentDate
	if parsed, err := availability.ParseDate(appt.AppointmentDate); err == nil {
		date = parsed.Format("02/01/2006")
	}
	start, err := availability.ParseTimeOfDay(appt.AppointmentTime)
	if err != nil {
		return date, appt.AppointmentTime
	}
	end := start.Add(int(appt.Duration))
	return date, fmt.Sprintf("%s - %s", start, end)
}

func BuildConfirmationEmail(details AppointmentDetails) (Message, error) {
	return render(confirmationSubject, confirmationBody, details)
}

func BuildReminderEmail(details AppointmentDetails) (Message, error) {
	return render(reminderSubject, reminderBody, details)
}

func BuildCancellationEmail(details AppointmentDetails) (Message, error) {
	return render(cancellationSubject, cancellationBody, details)
}

func render(subject, body *template.Template, details AppointmentDetails) (Message, error) {
	var subjectBuf, bodyBuf bytes.Buffer
	if err := subject.Execute(&subjectBuf, details); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", subject.Name(), err)
	}
	if err := body.Execute(&bodyBuf, details); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", body.Name(), err)
	}
	return Message{
		Subject: strings.TrimSpace(subjectBuf.String()),
		Body:    bodyBuf.String(),
	}, nil
}
