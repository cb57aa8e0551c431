package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

const (
	TemplateBookingReceived      = "booking_received"
	TemplateBookingNew           = "booking_new"
	TemplateAppointmentConfirmed = "appointment_confirmed"
	TemplateAppointmentCancelled = "appointment_cancelled"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Templates holds the subject and body template per email kind.
type Templates struct {
	byName map[string]emailTemplate
}

var defaultTemplateText = map[string][2]string{
	TemplateBookingReceived: {
		"Booking received: {{.service_name}} on {{.date}}",
		"Hi {{.customer_name}},\n\nWe received your booking for {{.service_name}} at {{.business_name}} on {{.date}} from {{.start_time}} to {{.end_time}}.\nPrice: {{.price}} {{.currency}}\n\nWe will let you know once it is confirmed.",
	},
	TemplateBookingNew: {
		"New booking: {{.service_name}} on {{.date}} {{.start_time}}",
		"{{.customer_name}} booked {{.service_name}} with {{.staff_name}} on {{.date}} from {{.start_time}} to {{.end_time}}.\nAppointment: {{.appointment_id}}",
	},
	TemplateAppointmentConfirmed: {
		"Confirmed: {{.service_name}} on {{.date}} {{.start_time}}",
		"The appointment for {{.service_name}} at {{.business_name}} with {{.staff_name}} on {{.date}} from {{.start_time}} to {{.end_time}} is confirmed.\nCustomer: {{.customer_name}}\nPrice: {{.price}} {{.currency}}",
	},
	TemplateAppointmentCancelled: {
		"Cancelled: {{.service_name}} on {{.date}} {{.start_time}}",
		"The appointment for {{.service_name}} at {{.business_name}} on {{.date}} from {{.start_time}} to {{.end_time}} was cancelled by the {{.initiator}}.{{if .reason}}\nReason: {{.reason}}{{end}}",
	},
}

func DefaultTemplates() *Templates {
	t := &Templates{byName: make(map[string]emailTemplate, len(defaultTemplateText))}
	for name, text := range defaultTemplateText {
		t.byName[name] = emailTemplate{
			subject: template.Must(template.New(name + ".subject").Parse(text[0])),
			body:    template.Must(template.New(name + ".body").Parse(text[1])),
		}
	}
	return t
}

func (t *Templates) Render(name string, data map[string]any) (subject, body string, err error) {
	tpl, ok := t.byName[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	subject = buf.String()
	buf.Reset()
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subject, buf.String(), nil
}
