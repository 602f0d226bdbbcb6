package toolkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/llm"
	"github.com/simd-personal/Inno-Supps/provider"
	"github.com/simd-personal/Inno-Supps/tool"
)

var fixedNow = time.Date(2026, 5, 1, 15, 30, 0, 0, time.UTC)

func mockKit() *Kit {
	clock := func() time.Time { return fixedNow }
	return New(nil, provider.NewMockSet(clock), WithMockMode(true), WithClock(clock))
}

func liveKit(p llm.Provider) *Kit {
	clock := func() time.Time { return fixedNow }
	return New(p, provider.NewMockSet(clock), WithClock(clock))
}

func failing() llm.Provider {
	return llm.NewMockFunc(func(llm.Request) (string, error) {
		return "", innosupps.Upstream("mock", errors.New("503"))
	})
}

func TestClassifyIntent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mock", func(t *testing.T) {
		got, err := mockKit().ClassifyIntent(ctx, "Let's talk pricing")
		require.NoError(t, err)
		assert.Equal(t, Intent{ReplyType: ReplyPositive, Urgency: "medium", BookMeeting: true}, got)
	})

	t.Run("parsed", func(t *testing.T) {
		p := llm.NewMock(`{"reply_type":"question","urgency":"high","book_meeting":false,"key_topics":["pricing"]}`)
		got, err := liveKit(p).ClassifyIntent(ctx, "how much?")
		require.NoError(t, err)
		assert.Equal(t, ReplyQuestion, got.ReplyType)
		assert.Equal(t, []string{"pricing"}, got.KeyTopics)

		calls := p.Calls()
		require.Len(t, calls, 1)
		assert.True(t, calls[0].JSON)
		assert.Contains(t, calls[0].Prompt, "how much?")
	})

	t.Run("upstream error falls back to neutral low", func(t *testing.T) {
		got, err := liveKit(failing()).ClassifyIntent(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, ReplyNeutral, got.ReplyType)
		assert.Equal(t, "low", got.Urgency)
		assert.False(t, got.BookMeeting)
	})

	t.Run("unparseable falls back to neutral medium", func(t *testing.T) {
		got, err := liveKit(llm.NewMock("I think it's positive")).ClassifyIntent(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, ReplyNeutral, got.ReplyType)
		assert.Equal(t, "medium", got.Urgency)
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := liveKit(llm.NewMock("{}")).ClassifyIntent(cctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("no provider", func(t *testing.T) {
		_, err := liveKit(nil).ClassifyIntent(ctx, "x")
		assert.ErrorIs(t, err, innosupps.ErrUpstream)
	})
}

func TestDraftEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	got, err := mockKit().DraftEmail(ctx, map[string]any{"company": "Acme", "name": "Jane"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Quick question about Acme", got.Subject)
	assert.Contains(t, got.Body, "Hi Jane,")
	assert.Contains(t, got.Body, "a potential opportunity")

	got, err = mockKit().DraftEmail(ctx, nil, "casual")
	require.NoError(t, err)
	assert.Equal(t, "Quick question about your business", got.Subject)

	got, err = liveKit(failing()).DraftEmail(ctx, map[string]any{"company": "Acme"}, "urgent")
	require.NoError(t, err)
	assert.Equal(t, "Quick question about Acme", got.Subject)
	assert.Equal(t, "urgent", got.Tone)
	assert.Equal(t, "Schedule a call", got.CallToAction)

	got, err = liveKit(llm.NewMock(`{"subject":"Hello","body":"Hi"}`)).DraftEmail(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Subject)
}

func TestCalendarTools(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	slots, err := mockKit().FindSlots(ctx, nil)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for i, s := range slots {
		assert.Equal(t, fixedNow.Day()+i+1, s.Start.Day())
		assert.Equal(t, 9, s.Start.Hour())
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
	}
	assert.Equal(t, "https://calendly.com/demo/202605020900", slots[0].Link)

	b, err := mockKit().BookSlot(ctx, "lead@acme.io", slots[0])
	require.NoError(t, err)
	assert.Equal(t, MockBookingID, b.BookingID)
	assert.Equal(t, slots[0].Link, b.CalendarLink)

	_, err = mockKit().BookSlot(ctx, "", slots[0])
	assert.ErrorIs(t, err, innosupps.ErrValidation)

	live, err := liveKit(nil).FindSlots(ctx, map[string]any{"limit": 2.0})
	require.NoError(t, err)
	assert.Len(t, live, 2)

	booked, err := liveKit(nil).BookSlot(ctx, "lead@acme.io", live[0])
	require.NoError(t, err)
	assert.Contains(t, booked.BookingID, "mock_gcal_")
}

func TestEnrichment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := mockKit().CompanyProfile(ctx, "acme.io")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc.", c.Name)

	_, err = mockKit().CompanyProfile(ctx, "")
	assert.ErrorIs(t, err, innosupps.ErrValidation)

	p, err := mockKit().EnrichPerson(ctx, "Jane Doe", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Senior Manager", p.Title)

	bare := New(nil, provider.Set{})
	_, err = bare.CompanyProfile(ctx, "acme.io")
	assert.ErrorIs(t, err, innosupps.ErrUpstream)
}

func TestAnalyzeTranscript(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := mockKit().AnalyzeTranscript(ctx, provider.MockTranscript)
	require.NoError(t, err)
	assert.Len(t, a.Highlights, 3)
	assert.Len(t, a.Objections, 2)

	a, err = liveKit(llm.NewMock("nope")).AnalyzeTranscript(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, emptyAnalysis(), a)
}

func TestNicheReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	md, err := mockKit().NicheReport(ctx, []string{"dental", "clinics"}, "", "")
	require.NoError(t, err)
	assert.Contains(t, md, "# Niche Market Report: dental, clinics")
	assert.Contains(t, md, "in the US region")
	assert.Contains(t, md, "Focus on dental as primary offering")

	_, err = mockKit().NicheReport(ctx, nil, "US", "1-50")
	assert.ErrorIs(t, err, innosupps.ErrValidation)

	md, err = liveKit(failing()).NicheReport(ctx, []string{"dental"}, "EU", "51-200")
	require.NoError(t, err)
	assert.Contains(t, md, "Error generating report")
}

func TestGrowthPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	plan, err := mockKit().GrowthPlan(ctx, map[string]any{
		"company_name":    "Acme",
		"current_revenue": 1200000.0,
		"target_revenue":  2400000.0,
	})
	require.NoError(t, err)
	assert.Contains(t, plan.PlanMD, "# Growth Plan for Acme")
	assert.Contains(t, plan.PlanMD, "Revenue: $1,200,000")
	assert.InDelta(t, 200000.0, plan.KPIs["monthly_revenue"], 0.001)

	plan, err = liveKit(llm.NewMock("{{")).GrowthPlan(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, plan.PlanMD, "invalid response format")
	assert.Empty(t, plan.KPIs)
}

func TestCommas(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0", commas(0))
	assert.Equal(t, "999", commas(999))
	assert.Equal(t, "1,000", commas(1000))
	assert.Equal(t, "12,345,678", commas(12345678))
	assert.Equal(t, "-1,500", commas(-1500))
}

func TestRegister(t *testing.T) {
	t.Parallel()
	reg := tool.NewRegistry()
	k := mockKit()
	require.NoError(t, Register(reg, k))

	assert.Equal(t, []string{
		ToolAnalyzeTranscript,
		ToolCalendarBook,
		ToolCalendarFindSlots,
		ToolClassifyIntent,
		ToolDraftEmail,
		ToolEnrichPerson,
		ToolFetchCompanyProfile,
		ToolGrowthPlan,
		ToolNicheReport,
		ToolRedactText,
	}, reg.Names())

	ctx := context.Background()
	out, err := reg.Call(ctx, ToolClassifyIntent, tool.Args{"email_text": "Let's talk pricing"})
	require.NoError(t, err)
	assert.Equal(t, ReplyPositive, out.(Intent).ReplyType)

	out, err = reg.Call(ctx, ToolDraftEmail, tool.Args{"context": map[string]any{"company": "Acme"}})
	require.NoError(t, err)
	assert.Equal(t, "Quick question about Acme", out.(Draft).Subject)

	out, err = reg.Call(ctx, ToolRedactText, tool.Args{"text": "mail jane.doe@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, "mail j******e@acme.io", out)

	slots, err := reg.Call(ctx, ToolCalendarFindSlots, tool.Args{})
	require.NoError(t, err)
	first := slots.([]provider.Slot)[0]

	out, err = reg.Call(ctx, ToolCalendarBook, tool.Args{"prospect_email": "a@x.io", "slot": first})
	require.NoError(t, err)
	assert.Equal(t, MockBookingID, out.(Booking).BookingID)

	assert.ErrorIs(t, Register(reg, k), innosupps.ErrDuplicateTool)
}
