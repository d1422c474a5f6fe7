package donation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/foodshare/internal/donation"
)

func TestDeriveLocation(t *testing.T) {
	for _, tc := range []struct{ address, want string }{
		{"123 Main St, Johannesburg", "123 Main St"},
		{"123 Main St", "123 Main St"},
		{"  12 Long Rd ,Cape Town, 8001 ", "12 Long Rd"},
		{", Pretoria", ", Pretoria"},
		{"", ""},
		{"Caf\u00e9 Row, Soweto", "Caf\u00e9 Row"},
	} {
		assert.Equal(t, tc.want, donation.DeriveLocation(tc.address), "address %q", tc.address)
	}
}

func TestParsePickup(t *testing.T) {
	got, err := donation.ParsePickup("2026-03-02", "17:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC), got)

	got, err = donation.ParsePickup(" 2026-03-02 ", "09:15:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 15, 30, 0, time.UTC), got)

	joburg := time.FixedZone("SAST", 2*60*60)
	got, err = donation.ParsePickup("2026-03-02", "00:30", joburg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	for _, bad := range [][2]string{{"2026-3-2", "17:30"}, {"2026-03-02", "17h30"}, {"", ""}} {
		_, err := donation.ParsePickup(bad[0], bad[1], time.UTC)
		assert.Error(t, err, "%v", bad)
	}
}

func TestParseExpiry(t *testing.T) {
	got, err := donation.ParseExpiry("2026-03-04", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), got)

	got, err = donation.ParseExpiry("2026-03-04T12:00:00+02:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), got)

	_, err = donation.ParseExpiry("tomorrow", time.UTC)
	assert.Error(t, err)
}
