package donation_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/foodshare/internal/donation"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

// pngOfSize returns n bytes that sniff as image/png.
func pngOfSize(n int) []byte {
	b := bytes.Repeat([]byte{0}, n)
	copy(b, pngHeader)
	return b
}

func imageInput(listingID string, data []byte) donation.ImageInput {
	return donation.ImageInput{
		ListingID:   listingID,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		FileName:    "bread.png",
	}
}

func TestAttachImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	data := pngOfSize(2048)

	res, err := h.m.AttachImage(ctx, donorToken, imageInput(l.ID, data))
	require.NoError(t, err)
	assert.Equal(t, "donations/"+l.ID+"/bread.png", res.ImagePath)
	assert.Equal(t, "mem://donations/"+l.ID+"/bread.png", res.ImageURL)

	obj, ok := h.objects.Get(res.ImagePath)
	require.True(t, ok)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	got, err := h.m.GetListing(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ImageURL, got.ImageURL)
	assert.Equal(t, res.ImagePath, got.ImagePath)
	assert.True(t, got.UpdatedAt.After(l.UpdatedAt))
}

func TestAttachImage_SizeLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)

	_, err := h.m.AttachImage(ctx, donorToken, imageInput(l.ID, pngOfSize(donation.MaxImageBytes)))
	require.NoError(t, err, "exactly the limit is accepted")

	_, err = h.m.AttachImage(ctx, donorToken, imageInput(l.ID, pngOfSize(donation.MaxImageBytes+1)))
	requireKind(t, err, donation.KindPayloadTooLarge)
	assert.ErrorIs(t, err, donation.ErrPayloadTooLarge)
	assert.Equal(t, 1, h.objects.Puts(), "oversized image never reaches storage")
}

func TestAttachImage_MissingFields(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.AttachImage(context.Background(), donorToken, donation.ImageInput{})

	var de *donation.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, donation.KindValidation, de.Kind)
	assert.Equal(t, []string{"listingId", "imageBase64", "fileName"}, de.Fields)
}

func TestAttachImage_InvalidPayload(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)

	for name, payload := range map[string]string{
		"not base64":     "!!not base64!!",
		"empty data url": "data:image/png;base64,",
	} {
		t.Run(name, func(t *testing.T) {
			in := imageInput(l.ID, nil)
			in.ImageBase64 = payload
			_, err := h.m.AttachImage(context.Background(), donorToken, in)
			requireKind(t, err, donation.KindValidation)
		})
	}
	assert.Zero(t, h.objects.Puts())
}

func TestAttachImage_UnpaddedBase64(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)

	in := imageInput(l.ID, nil)
	in.ImageBase64 = base64.RawStdEncoding.EncodeToString(pngOfSize(10))
	_, err := h.m.AttachImage(context.Background(), donorToken, in)
	require.NoError(t, err)
}

func TestAttachImage_OnlyOwner(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)

	for _, tok := range []string{receiverToken, adminToken} {
		_, err := h.m.AttachImage(context.Background(), tok, imageInput(l.ID, pngOfSize(16)))
		requireKind(t, err, donation.KindForbidden)
	}
	assert.Zero(t, h.objects.Puts())
}

func TestAttachImage_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.AttachImage(context.Background(), donorToken, imageInput("missing", pngOfSize(16)))
	requireKind(t, err, donation.KindNotFound)
}

func TestAttachImage_ContentType(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00")

	for _, tc := range []struct {
		name    string
		payload string
		given   string
		want    string
		wantErr bool
	}{
		{name: "sniffed", payload: base64.StdEncoding.EncodeToString(gif), want: "image/gif"},
		{name: "explicit wins", payload: base64.StdEncoding.EncodeToString(gif), given: "image/webp", want: "image/webp"},
		{name: "parameters dropped", payload: base64.StdEncoding.EncodeToString(gif), given: "image/jpeg; quality=90", want: "image/jpeg"},
		{name: "data url", payload: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpegish")), want: "image/jpeg"},
		{name: "declared non-image", payload: base64.StdEncoding.EncodeToString(gif), given: "application/pdf", wantErr: true},
		{name: "sniffed text", payload: base64.StdEncoding.EncodeToString([]byte("hello world")), wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			l := h.listing(t)

			res, err := h.m.AttachImage(context.Background(), donorToken, donation.ImageInput{
				ListingID:   l.ID,
				ImageBase64: tc.payload,
				FileName:    "pic",
				ContentType: tc.given,
			})
			if tc.wantErr {
				requireKind(t, err, donation.KindValidation)
				return
			}
			require.NoError(t, err)
			obj, ok := h.objects.Get(res.ImagePath)
			require.True(t, ok)
			assert.Equal(t, tc.want, obj.ContentType)
		})
	}
}

func TestAttachImage_LastWriteWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)

	first := pngOfSize(32)
	second := append(pngOfSize(32), 'x')

	_, err := h.m.AttachImage(ctx, donorToken, imageInput(l.ID, first))
	require.NoError(t, err)
	res, err := h.m.AttachImage(ctx, donorToken, imageInput(l.ID, second))
	require.NoError(t, err)

	assert.Equal(t, 2, h.objects.Puts())
	assert.Equal(t, 1, h.objects.Len(), "same file name overwrites the object")
	obj, _ := h.objects.Get(res.ImagePath)
	assert.Equal(t, second, obj.Data)

	other := imageInput(l.ID, first)
	other.FileName = "loaf.png"
	res, err = h.m.AttachImage(ctx, donorToken, other)
	require.NoError(t, err)

	got, err := h.m.GetListing(ctx, donorToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ImagePath, got.ImagePath, "listing points at the latest upload")
}

func TestAttachImage_ObjectStoreFailure(t *testing.T) {
	h := newHarness(t, withObjects(objectsFunc(func(context.Context, string, []byte, string) (string, error) {
		return "", errors.New("bucket unavailable")
	})))
	l := h.listing(t)
	writes := h.store.writes.Load()

	_, err := h.m.AttachImage(context.Background(), donorToken, imageInput(l.ID, pngOfSize(16)))
	requireKind(t, err, donation.KindInternal)
	assert.Equal(t, writes, h.store.writes.Load(), "listing untouched")
}

func TestImagePath(t *testing.T) {
	for _, tc := range []struct{ name, want string }{
		{"bread.png", "donations/L1/bread.png"},
		{"my photo (1).jpg", "donations/L1/my_photo__1_.jpg"},
		{"../../etc/passwd", "donations/L1/passwd"},
		{`C:\Users\d\pic.png`, "donations/L1/pic.png"},
		{"...", "donations/L1/image"},
		{" ", "donations/L1/image"},
		{"br\u00f8d.jpg", "donations/L1/br_d.jpg"},
	} {
		assert.Equal(t, tc.want, donation.ImagePath("L1", tc.name), "file name %q", tc.name)
	}
}
