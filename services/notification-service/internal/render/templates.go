// Package render turns appointment events into message text.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
)

type Message struct {
	Subject string
	Body    string
}

// Data is what templates see.
type Data struct {
	RecipientName string
	ProviderName  string
	AppointmentID string
	Start         string
	PreviousStart string
	Reason        string
	Emergency     bool
	Price         string
	Lead          string
}

type tmpl struct {
	subject string
	body    string
}

var sources = map[string]tmpl{
	events.KindCreated: {
		subject: "Appointment booked for {{.Start}}",
		body: `Hello {{.RecipientName}},
your appointment {{.AppointmentID}} with {{.ProviderName}} is booked for {{.Start}}.
{{- if .Emergency}}
It was registered as an emergency.{{end}}
Price: {{.Price}}.`,
	},
	events.KindConfirmed: {
		subject: "Appointment confirmed",
		body: `Hello {{.RecipientName}},
your appointment with {{.ProviderName}} on {{.Start}} is confirmed.`,
	},
	events.KindCancelled: {
		subject: "Appointment cancelled",
		body: `Hello {{.RecipientName}},
your appointment with {{.ProviderName}} on {{.Start}} was cancelled.
{{- if .Reason}}
Reason: {{.Reason}}{{end}}`,
	},
	events.KindAttended: {
		subject: "Thank you for your visit",
		body: `Hello {{.RecipientName}},
the appointment on {{.Start}} with {{.ProviderName}} is complete.`,
	},
	events.KindRescheduled: {
		subject: "Appointment moved to {{.Start}}",
		body: `Hello {{.RecipientName}},
your appointment with {{.ProviderName}} moved from {{.PreviousStart}} to {{.Start}}.`,
	},
	events.KindReminder: {
		subject: "Reminder: appointment {{.Start}}",
		body: `Hello {{.RecipientName}},
this is a reminder of your appointment with {{.ProviderName}} on {{.Start}}
{{- if .Lead}} (in {{.Lead}}){{end}}.`,
	},
}

// Renderer holds the parsed templates; safe for concurrent use.
type Renderer struct {
	loc      *time.Location
	subjects map[string]*template.Template
	bodies   map[string]*template.Template
}

func New(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{loc: loc, subjects: map[string]*template.Template{}, bodies: map[string]*template.Template{}}
	for kind, src := range sources {
		s, err := template.New(kind + ".subject").Option("missingkey=error").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", kind, err)
		}
		b, err := template.New(kind + ".body").Option("missingkey=error").Parse(src.body)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", kind, err)
		}
		r.subjects[kind] = s
		r.bodies[kind] = b
	}
	return r, nil
}

// Render builds the message for one recipient.
func (r *Renderer) Render(evt events.AppointmentEvent, recipient events.Party) (Message, error) {
	s, ok := r.subjects[evt.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for event kind %q", evt.Kind)
	}
	data := Data{
		RecipientName: fallback(recipient.Name, "there"),
		ProviderName:  fallback(evt.Provider.Name, "your provider"),
		AppointmentID: evt.AppointmentID,
		Start:         r.localTime(evt.StartTime),
		PreviousStart: r.localTime(evt.PreviousStart),
		Reason:        evt.Reason,
		Emergency:     evt.IsEmergency,
		Price:         fmt.Sprintf("%d.%02d", evt.FinalPriceCents/100, evt.FinalPriceCents%100),
	}
	if evt.Kind == events.KindReminder {
		if d, err := time.ParseDuration(evt.Reason); err == nil {
			data.Lead = humanize(d)
		}
	}

	var subject, body bytes.Buffer
	if err := s.Execute(&subject, data); err != nil {
		return Message{}, err
	}
	if err := r.bodies[evt.Kind].Execute(&body, data); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject.String(), Body: body.String()}, nil
}

func (r *Renderer) localTime(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.In(r.loc).Format("Mon 02 Jan 2006 15:04")
}

func humanize(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
