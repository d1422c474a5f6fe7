package donation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jredh-dev/foodshare/internal/ical"
	"github.com/jredh-dev/foodshare/pkg/models"
)

const (
	pickupWindow   = time.Hour
	pickupReminder = time.Hour
)

// PickupCalendar renders the listing's pickup window as an iCalendar
// document.
func (m *Manager) PickupCalendar(ctx context.Context, credential, listingID string) (string, error) {
	l, err := m.GetListing(ctx, credential, listingID)
	if err != nil {
		return "", err
	}
	return ical.Render("Food pickup", pickupEvent(l)), nil
}

func pickupEvent(l *models.Listing) ical.Pickup {
	summary := "Pickup: " + l.FoodType
	if qty := strings.TrimSpace(l.Quantity + " " + l.Unit); qty != "" {
		summary += fmt.Sprintf(" (%s)", qty)
	}

	var details []string
	if l.Description != "" {
		details = append(details, l.Description)
	}
	if l.SpecialInstructions != "" {
		details = append(details, "Instructions: "+l.SpecialInstructions)
	}

	p := ical.Pickup{
		UID:         l.ID + "@foodshare",
		Summary:     summary,
		Description: strings.Join(details, "\n"),
		Address:     l.PickupAddress,
		Start:       l.PickupAt,
		Duration:    pickupWindow,
		Cancelled:   l.Status == models.ListingCancelled,
		Organizer:   l.DonorContact,
		Reminder:    pickupReminder,
		Created:     l.CreatedAt,
		Updated:     l.UpdatedAt,
	}
	if l.Coordinates != nil {
		lat, lng := l.Coordinates.Lat, l.Coordinates.Lng
		p.Lat, p.Lng = &lat, &lng
	}
	return p
}
