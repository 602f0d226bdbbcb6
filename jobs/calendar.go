package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
)

// syncHorizon is how many days ahead sync_calendar_events reads.
const syncHorizon = 7

// AutoBookArgs is the payload of auto_book_meeting.
type AutoBookArgs struct {
	ProspectEmail string `json:"prospect_email"`
}

// AutoBookResult is stored on a finished auto_book_meeting job.
type AutoBookResult struct {
	Status        string `json:"status"`
	MeetingBooked bool   `json:"meeting_booked"`
	MeetingID     string `json:"meeting_id,omitempty"`
	BookingID     string `json:"booking_id,omitempty"`
	CalendarLink  string `json:"calendar_link,omitempty"`
	Message       string `json:"message,omitempty"`
}

// autoBookMeeting books the first free slot with a known prospect and
// records the meeting.
func (js *Jobs) autoBookMeeting(ctx context.Context, args AutoBookArgs) (any, error) {
	ws := workspace(ctx)
	if args.ProspectEmail == "" {
		return nil, innosupps.Invalid("%s: prospect_email is required", FnAutoBookMeeting)
	}

	prospect, err := js.deps.CRM.FindProspectByEmail(ctx, ws, args.ProspectEmail)
	if err != nil {
		return nil, permanent(err)
	}

	slots, err := js.deps.Kit.FindSlots(ctx, map[string]any{
		"duration": 30,
		"timezone": "UTC",
		"days":     7,
	})
	if err != nil {
		return nil, fmt.Errorf("find slots: %w", err)
	}
	if len(slots) == 0 {
		return AutoBookResult{Status: StatusNoSlots, Message: "No available slots found"}, nil
	}

	slot := slots[0]
	booking, err := js.deps.Kit.BookSlot(ctx, prospect.Email, slot)
	if err != nil {
		return nil, fmt.Errorf("book slot: %w", err)
	}
	if booking.Status != StatusSuccess {
		return AutoBookResult{Status: StatusBookingFailed, Message: booking.Confirmation}, nil
	}

	pid := prospect.ID
	m := &crm.Meeting{
		Entity:       js.entity(),
		ID:           id.NewMeetingID(),
		WorkspaceID:  ws,
		ProspectID:   &pid,
		StartsAt:     slot.Start,
		EndsAt:       slot.End,
		CalendarLink: booking.CalendarLink,
		BookingID:    booking.BookingID,
		Source:       crm.SourceAutoBooked,
	}
	if err := js.deps.CRM.InsertMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}

	return AutoBookResult{
		Status:        StatusSuccess,
		MeetingBooked: true,
		MeetingID:     m.ID.String(),
		BookingID:     booking.BookingID,
		CalendarLink:  booking.CalendarLink,
	}, nil
}

// SyncCalendarArgs is the payload of sync_calendar_events.
type SyncCalendarArgs struct {
	IntegrationID string `json:"integration_id"`
}

// SyncCalendarResult is stored on a finished sync_calendar_events job.
type SyncCalendarResult struct {
	Status        string `json:"status"`
	IntegrationID string `json:"integration_id"`
	EventsSynced  int    `json:"events_synced"`
	Message       string `json:"message"`
}

// syncCalendar reads the next week of availability from the calendar
// provider.
func (js *Jobs) syncCalendar(ctx context.Context, args SyncCalendarArgs) (any, error) {
	ws := workspace(ctx)

	cal := js.deps.Kit.Providers().Calendar
	if cal == nil {
		return nil, innosupps.Upstream("calendar", errors.New("no calendar provider configured"))
	}
	start := js.deps.Now().UTC()
	slots, err := cal.FreeBusy(ctx, start, start.AddDate(0, 0, syncHorizon))
	if err != nil {
		return nil, innosupps.Upstream("calendar", err)
	}

	js.deps.Logger.Info("calendar synced",
		slog.String("workspace_id", ws),
		slog.String("integration_id", args.IntegrationID),
		slog.Int("events", len(slots)),
	)
	return SyncCalendarResult{
		Status:        StatusSuccess,
		IntegrationID: args.IntegrationID,
		EventsSynced:  len(slots),
		Message:       "Calendar sync completed",
	}, nil
}
