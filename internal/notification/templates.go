package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

// Rendered is a subject and plain-text body pair.
type Rendered struct {
	Subject string
	Body    string
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + ".subject").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Parse(body)),
	}
}

var (
	escalatedTemplate = mustTemplate("escalated",
		`Issue Escalated: {{.TicketCode}}`,
		`The ticket {{.TicketCode}} has been escalated to you.`)

	assignedTemplate = mustTemplate("assigned",
		`[Issue Desk] New Ticket {{.TicketCode}}: {{.Subject}}`,
		`You have been assigned a new ticket.

Ticket ID   : {{.TicketCode}}
Reported by : {{.Reporter}}
Description : {{.Description}}
TAT         : {{.Deadline}}
`)

	receivedTemplate = mustTemplate("received",
		`[Issue Desk] Ticket Received: {{.TicketCode}}`,
		`Your ticket has been created.

Ticket ID : {{.TicketCode}}
Status    : {{.Status}}
TAT       : {{.Deadline}}
`)

	deescalatedTemplate = mustTemplate("deescalated",
		`Issue Returned: {{.TicketCode}}`,
		`The ticket {{.TicketCode}} has been returned to you by an administrator.

TAT : {{.Deadline}}
`)

	extensionTemplate = mustTemplate("extension",
		`TAT Extension {{.Decision}}: {{.TicketCode}}`,
		`Your request for {{.ExtraHours}} more hour(s) on ticket {{.TicketCode}} was {{.Decision}}.
{{if .Deadline}}
New TAT : {{.Deadline}}
{{end}}`)
)

// EscalatedData feeds the escalation message.
type EscalatedData struct {
	TicketCode string
}

// AssignedData feeds the new-ticket message sent to the room incharge.
type AssignedData struct {
	TicketCode  string
	Subject     string
	Reporter    string
	Description string
	Deadline    string
}

// ReceivedData feeds the confirmation sent to the reporter.
type ReceivedData struct {
	TicketCode string
	Status     string
	Deadline   string
}

// DeescalatedData feeds the message sent to the incharge after de-escalation.
type DeescalatedData struct {
	TicketCode string
	Deadline   string
}

// ExtensionData feeds the decision message sent to the requester.
type ExtensionData struct {
	TicketCode string
	Decision   string
	ExtraHours int
	Deadline   string
}

// RenderEscalated renders the escalation message.
func RenderEscalated(data EscalatedData) (Rendered, error) { return render(escalatedTemplate, data) }

// RenderAssigned renders the new-ticket message.
func RenderAssigned(data AssignedData) (Rendered, error) { return render(assignedTemplate, data) }

// RenderReceived renders the reporter confirmation.
func RenderReceived(data ReceivedData) (Rendered, error) { return render(receivedTemplate, data) }

// RenderDeescalated renders the de-escalation message.
func RenderDeescalated(data DeescalatedData) (Rendered, error) {
	return render(deescalatedTemplate, data)
}

// RenderExtension renders an extension decision.
func RenderExtension(data ExtensionData) (Rendered, error) { return render(extensionTemplate, data) }

func render(t mailTemplate, data any) (Rendered, error) {
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("render body: %w", err)
	}
	return Rendered{Subject: subject.String(), Body: body.String()}, nil
}
