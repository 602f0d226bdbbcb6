// Package provider declares the third-party integrations the job bodies
// depend on (calendar, enrichment, transcription, outbound mail) and ships
// deterministic mock implementations selected by mock mode.
package provider

import (
	"context"
	"time"
)

// Slot is a bookable calendar window.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Link  string    `json:"link"`
}

// EventRequest describes a calendar event to create.
type EventRequest struct {
	Title       string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Description string
}

// Event is a created calendar event.
type Event struct {
	ID        string    `json:"event_id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Attendees []string  `json:"attendees"`
	Link      string    `json:"calendar_link"`
}

// Calendar reads availability and books events.
type Calendar interface {
	FreeBusy(ctx context.Context, start, end time.Time) ([]Slot, error)
	CreateEvent(ctx context.Context, req EventRequest) (*Event, error)
}

// Company is an enriched company profile.
type Company struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Industry     string   `json:"industry"`
	Size         string   `json:"size"`
	Revenue      string   `json:"revenue,omitempty"`
	Location     string   `json:"location,omitempty"`
	Site         string   `json:"site"`
	Summary      string   `json:"summary"`
	Technologies []string `json:"technologies,omitempty"`
}

// Person is an enriched contact.
type Person struct {
	Name        string `json:"name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	EmailGuess  string `json:"email_guess"`
	LinkedInURL string `json:"linkedin"`
	Summary     string `json:"summary"`
}

// Enricher looks up company and person data.
type Enricher interface {
	Company(ctx context.Context, domain string) (*Company, error)
	Person(ctx context.Context, name, company string) (*Person, error)
}

// Transcript is the text of a recording.
type Transcript struct {
	Text       string        `json:"text"`
	Language   string        `json:"language"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingURL, language string) (*Transcript, error)
}

// Mail is an outbound email.
type Mail struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// Receipt acknowledges a sent email.
type Receipt struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, m Mail) (*Receipt, error)
}

// Set bundles one implementation of each integration.
type Set struct {
	Calendar    Calendar
	Enricher    Enricher
	Transcriber Transcriber
	Mailer      Mailer
}
