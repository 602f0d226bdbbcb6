package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
)

func TestMockCalendarFreeBusy(t *testing.T) {
	t.Parallel()
	c := &MockCalendar{Now: time.Now}
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	slots, err := c.FreeBusy(context.Background(), start, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 7)

	// 09:00 on the first day is before start.
	assert.Equal(t, 14, slots[0].Start.Hour())
	assert.Equal(t, 16, slots[1].Start.Hour())
	assert.Equal(t, 9, slots[2].Start.Hour())
	for _, s := range slots {
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
		assert.NotEmpty(t, s.Link)
	}
}

func TestMockCalendarCreateEvent(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c := &MockCalendar{Now: func() time.Time { return fixed }}

	ev, err := c.CreateEvent(context.Background(), EventRequest{Title: "Demo", Attendees: []string{"a@x.io"}})
	require.NoError(t, err)
	assert.Equal(t, "Demo", ev.Title)
	assert.Contains(t, ev.ID, "mock_gcal_")
	assert.Equal(t, []string{"a@x.io"}, ev.Attendees)
}

func TestMockEnricher(t *testing.T) {
	t.Parallel()
	e := MockEnricher{}
	ctx := context.Background()

	co, err := e.Company(ctx, "acme.io")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc.", co.Name)
	assert.Equal(t, "https://acme.io", co.Site)

	p, err := e.Person(ctx, "Jane Doe", "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@acmecorp.com", p.EmailGuess)
	assert.Equal(t, "https://linkedin.com/in/jane-doe", p.LinkedInURL)
	assert.Equal(t, "Doe", p.LastName)

	p, err = e.Person(ctx, "Cher", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Mock", p.LastName)
}

func TestMockMailerRecords(t *testing.T) {
	t.Parallel()
	m := &MockMailer{}
	r, err := m.Send(context.Background(), Mail{To: "a@x.io", Subject: "hi", ThreadID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "sent", r.Status)
	assert.Equal(t, "t-1", r.ThreadID)
	require.Len(t, m.Sent(), 1)
	assert.Equal(t, "a@x.io", m.Sent()[0].To)
}

func TestMockTranscriber(t *testing.T) {
	t.Parallel()
	tr, err := MockTranscriber{}.Transcribe(context.Background(), "https://rec/1", "")
	require.NoError(t, err)
	assert.Equal(t, "en", tr.Language)
	assert.True(t, strings.HasPrefix(tr.Text, "[00:00]"))
}

func TestWhisperTranscribe(t *testing.T) {
	t.Parallel()

	recordings := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/1.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "RIFF....")
	}))
	t.Cleanup(recordings.Close)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, openai.Whisper1, r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "hello there", "language": "en", "duration": 1.5})
	}))
	t.Cleanup(api.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = api.URL + "/v1"
	w := NewWhisper(openai.NewClientWithConfig(cfg), recordings.Client())

	tr, err := w.Transcribe(context.Background(), recordings.URL+"/calls/1.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello there", tr.Text)
	assert.Equal(t, 1500*time.Millisecond, tr.Duration)

	_, err = w.Transcribe(context.Background(), recordings.URL+"/missing.mp3", "en")
	assert.ErrorIs(t, err, innosupps.ErrUpstream)
}
