package donation

import (
	"context"
	"encoding/base64"
	"mime"
	"net/http"
	"path"
	"strings"
)

// MaxImageBytes is the largest decoded image accepted by AttachImage.
const MaxImageBytes = 5 << 20

// ImageInput is an image upload for a listing.
type ImageInput struct {
	ListingID string `json:"listingId"`
	// ImageBase64 is standard base64, optionally as a data: URL.
	ImageBase64 string `json:"imageBase64"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// ImageResult describes the stored image.
type ImageResult struct {
	ImageURL  string `json:"imageUrl"`
	ImagePath string `json:"imagePath"`
}

// AttachImage stores an image for a listing owned by the caller. A listing
// has one image; uploading again replaces it, and the same file name maps to
// the same object path.
func (m *Manager) AttachImage(ctx context.Context, credential string, in ImageInput) (*ImageResult, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	var fields []string
	if strings.TrimSpace(in.ListingID) == "" {
		fields = append(fields, "listingId")
	}
	if strings.TrimSpace(in.ImageBase64) == "" {
		fields = append(fields, "imageBase64")
	}
	if strings.TrimSpace(in.FileName) == "" {
		fields = append(fields, "fileName")
	}
	if len(fields) > 0 {
		return nil, missingFields(fields)
	}

	data, declaredType, err := decodeImage(in.ImageBase64)
	if err != nil {
		ve := invalidField("imageBase64", "image is not valid base64")
		ve.Err = err
		return nil, ve
	}
	if len(data) == 0 {
		return nil, invalidField("imageBase64", "image is empty")
	}

	l, err := m.loadListing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(caller, l); err != nil {
		return nil, err
	}

	if len(data) > MaxImageBytes {
		return nil, newError(KindPayloadTooLarge, "image is %d bytes; the limit is %d", len(data), MaxImageBytes)
	}

	contentType, err := imageContentType(in.ContentType, declaredType, data)
	if err != nil {
		return nil, err
	}

	objectPath := ImagePath(l.ID, in.FileName)
	url, err := m.objects.Put(ctx, objectPath, data, contentType)
	if err != nil {
		m.log.Error("object store failure", "path", objectPath, "error", err)
		return nil, internal("store image", err)
	}

	if err := m.store.SetListingImage(ctx, l.ID, url, objectPath, m.stamp(l.UpdatedAt)); err != nil {
		return nil, m.storeError("set listing image", err, "listing %s not found", l.ID)
	}

	m.log.Info("image attached", "listing_id", l.ID, "caller_id", caller.ID, "path", objectPath, "bytes", len(data))
	return &ImageResult{ImageURL: url, ImagePath: objectPath}, nil
}

// ImagePath is the object path for a listing's image file.
func ImagePath(listingID, fileName string) string {
	return path.Join("donations", listingID, sanitizeFileName(fileName))
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "image"
	}
	return out
}

// decodeImage accepts raw base64 or a data: URL and returns the bytes plus
// any content type the data URL declared.
func decodeImage(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)

	var declared string
	if strings.HasPrefix(payload, "data:") {
		if comma := strings.IndexByte(payload, ','); comma >= 0 {
			meta := payload[len("data:"):comma]
			declared = strings.TrimSuffix(meta, ";base64")
			payload = payload[comma+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(payload); rawErr == nil {
			return raw, declared, nil
		}
		return nil, "", err
	}
	return data, declared, nil
}

func imageContentType(given, declared string, data []byte) (string, error) {
	ct := strings.TrimSpace(given)
	if ct == "" {
		ct = declared
	}
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", invalidField("contentType", "content type %q is not an image type", ct)
	}
	return mediaType, nil
}
