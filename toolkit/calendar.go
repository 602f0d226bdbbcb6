package toolkit

import (
	"context"
	"fmt"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/provider"
)

// MockBookingID is the booking id returned in mock mode.
const MockBookingID = "mock_booking_123"

// FindSlots returns bookable slots. Recognised preferences: days (search
// horizon, default 7) and limit (default 3).
func (k *Kit) FindSlots(ctx context.Context, prefs map[string]any) ([]provider.Slot, error) {
	now := k.now().UTC()
	if k.mock {
		day := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.UTC)
		slots := make([]provider.Slot, 0, 3)
		for i := 1; i <= 3; i++ {
			start := day.AddDate(0, 0, i)
			slots = append(slots, provider.Slot{
				Start: start,
				End:   start.Add(time.Hour),
				Link:  "https://calendly.com/demo/" + start.Format("200601021504"),
			})
		}
		return slots, nil
	}
	if k.providers.Calendar == nil {
		return nil, innosupps.Upstream("calendar", fmt.Errorf("no calendar provider configured"))
	}

	days := intPref(prefs, "days", 7)
	limit := intPref(prefs, "limit", 3)
	slots, err := k.providers.Calendar.FreeBusy(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, innosupps.Upstream("calendar", err)
	}
	if len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

// Booking confirms a booked slot.
type Booking struct {
	Status       string `json:"status"`
	BookingID    string `json:"booking_id"`
	CalendarLink string `json:"calendar_link"`
	Confirmation string `json:"confirmation"`
}

// BookSlot books slot with the prospect.
func (k *Kit) BookSlot(ctx context.Context, prospectEmail string, slot provider.Slot) (Booking, error) {
	if prospectEmail == "" {
		return Booking{}, innosupps.Invalid("calendar_book: prospect_email is required")
	}
	if k.mock {
		return Booking{
			Status:       "success",
			BookingID:    MockBookingID,
			CalendarLink: slot.Link,
			Confirmation: "Meeting booked successfully",
		}, nil
	}
	if k.providers.Calendar == nil {
		return Booking{}, innosupps.Upstream("calendar", fmt.Errorf("no calendar provider configured"))
	}

	ev, err := k.providers.Calendar.CreateEvent(ctx, provider.EventRequest{
		Title:     "Intro call",
		Start:     slot.Start,
		End:       slot.End,
		Attendees: []string{prospectEmail},
	})
	if err != nil {
		return Booking{}, innosupps.Upstream("calendar", err)
	}
	link := ev.Link
	if link == "" {
		link = slot.Link
	}
	return Booking{
		Status:       "success",
		BookingID:    ev.ID,
		CalendarLink: link,
		Confirmation: "Meeting booked successfully",
	}, nil
}

func intPref(prefs map[string]any, key string, def int) int {
	switch v := prefs[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}
