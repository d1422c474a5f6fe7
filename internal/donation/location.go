package donation

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	pickupLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05"}
	expiryLayouts = []string{"2006-01-02", time.RFC3339}
)

// DeriveLocation returns the coarse location shown for a pickup address: the
// text before the first comma, or the whole address when there is none.
func DeriveLocation(address string) string {
	address = strings.TrimSpace(norm.NFC.String(address))
	if i := strings.Index(address, ","); i >= 0 {
		if head := strings.TrimSpace(address[:i]); head != "" {
			return head
		}
	}
	return address
}

// ParsePickup combines a YYYY-MM-DD date and an HH:MM[:SS] time in loc.
func ParsePickup(date, clock string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	for _, layout := range pickupLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse pickup date/time %q", value)
}

// ParseExpiry parses a YYYY-MM-DD date or an RFC 3339 timestamp.
func ParseExpiry(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse expiry date %q", value)
}
