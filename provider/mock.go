package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	_ Calendar    = (*MockCalendar)(nil)
	_ Enricher    = (*MockEnricher)(nil)
	_ Transcriber = (*MockTranscriber)(nil)
	_ Mailer      = (*MockMailer)(nil)
)

// NewMockSet returns mock integrations sharing the clock now.
func NewMockSet(now func() time.Time) Set {
	if now == nil {
		now = time.Now
	}
	return Set{
		Calendar:    &MockCalendar{Now: now},
		Enricher:    &MockEnricher{},
		Transcriber: &MockTranscriber{},
		Mailer:      &MockMailer{Now: now},
	}
}

// MockCalendar offers three one-hour slots per day at 09:00, 14:00 and
// 16:00, capped at seven.
type MockCalendar struct {
	Now func() time.Time
}

// FreeBusy implements Calendar.
func (c *MockCalendar) FreeBusy(_ context.Context, start, end time.Time) ([]Slot, error) {
	var slots []Slot
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for ; day.Before(end) && len(slots) < 7; day = day.AddDate(0, 0, 1) {
		for _, hour := range []int{9, 14, 16} {
			s := day.Add(time.Duration(hour) * time.Hour)
			e := s.Add(time.Hour)
			if s.Before(start) || e.After(end) || len(slots) == 7 {
				continue
			}
			slots = append(slots, Slot{
				Start: s,
				End:   e,
				Link:  fmt.Sprintf("https://calendar.google.com/event/mock_%d", s.Unix()),
			})
		}
	}
	return slots, nil
}

// CreateEvent implements Calendar.
func (c *MockCalendar) CreateEvent(_ context.Context, req EventRequest) (*Event, error) {
	ts := c.Now().Unix()
	return &Event{
		ID:        fmt.Sprintf("mock_gcal_%d", ts),
		Title:     req.Title,
		Start:     req.Start,
		End:       req.End,
		Attendees: req.Attendees,
		Link:      fmt.Sprintf("https://calendar.google.com/event/mock_%d", ts),
	}, nil
}

// MockEnricher derives profiles from its inputs.
type MockEnricher struct{}

// Company implements Enricher.
func (MockEnricher) Company(_ context.Context, domain string) (*Company, error) {
	stem, _, _ := strings.Cut(domain, ".")
	return &Company{
		Name:         titleCase(stem) + " Inc.",
		Domain:       domain,
		Industry:     "Technology",
		Size:         "50-200 employees",
		Revenue:      "$10M-$50M",
		Location:     "San Francisco, CA",
		Site:         "https://" + domain,
		Summary:      fmt.Sprintf("Leading technology company in the %s space", stem),
		Technologies: []string{"React", "Node.js", "AWS", "PostgreSQL"},
	}, nil
}

// Person implements Enricher.
func (MockEnricher) Person(_ context.Context, name, company string) (*Person, error) {
	first, last, ok := strings.Cut(name, " ")
	if !ok {
		last = "Mock"
	}
	lower := strings.ToLower(name)
	return &Person{
		Name:        name,
		FirstName:   first,
		LastName:    last,
		Title:       "Senior Manager",
		Company:     company,
		EmailGuess:  strings.ReplaceAll(lower, " ", ".") + "@" + strings.ToLower(strings.ReplaceAll(company, " ", "")) + ".com",
		LinkedInURL: "https://linkedin.com/in/" + strings.ReplaceAll(lower, " ", "-"),
		Summary:     "Experienced professional at " + company,
	}, nil
}

// MockTranscript is the canned discovery call every mock transcription
// returns.
const MockTranscript = `[00:00] Hello, this is John from TechCorp. Thanks for taking my call.
[00:05] Hi John, this is Sarah. What can I help you with today?
[00:10] We're looking for a solution to help with our lead generation process.
[00:15] That's great! We specialize in exactly that. Can you tell me more about your current process?
[00:20] Right now we're using spreadsheets and it's getting out of hand.
[00:25] I understand. How many leads are you processing per month?
[00:30] About 500-1000 leads, but we're only converting about 5%.
[00:35] That's actually quite common. Our clients typically see 15-20% conversion rates.
[00:40] That sounds promising. What's the investment like?
[00:45] Our packages start at $2,000/month for up to 1,000 leads.
[00:50] That's within our budget. When could we get started?
[00:55] We could have you up and running within 2 weeks. Would you like to schedule a demo?
[01:00] Yes, that would be great. How about next Tuesday at 2pm?
[01:05] Perfect! I'll send you a calendar invite. Thanks for your time today.
[01:10] Thank you, Sarah. Looking forward to the demo.`

// MockTranscriber returns MockTranscript for any recording.
type MockTranscriber struct{}

// Transcribe implements Transcriber.
func (MockTranscriber) Transcribe(_ context.Context, _ string, language string) (*Transcript, error) {
	if language == "" {
		language = "en"
	}
	return &Transcript{Text: MockTranscript, Language: language, Duration: 70 * time.Second, Confidence: 0.95}, nil
}

// MockMailer records sent mail instead of delivering it.
type MockMailer struct {
	Now func() time.Time

	mu   sync.Mutex
	sent []Mail
}

// Send implements Mailer.
func (m *MockMailer) Send(_ context.Context, mail Mail) (*Receipt, error) {
	m.mu.Lock()
	m.sent = append(m.sent, mail)
	m.mu.Unlock()

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ts := now().UnixNano()
	thread := mail.ThreadID
	if thread == "" {
		thread = fmt.Sprintf("mock_thread_%d", ts)
	}
	return &Receipt{MessageID: fmt.Sprintf("mock_%d", ts), ThreadID: thread, Status: "sent"}, nil
}

// Sent returns the mail sent so far.
func (m *MockMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mail, len(m.sent))
	copy(out, m.sent)
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
