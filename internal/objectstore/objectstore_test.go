package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisk_PutAndServe(t *testing.T) {
	root := filepath.Join(t.TempDir(), "media")
	d, err := NewDisk(root, "http://localhost:8080/media/")
	require.NoError(t, err)

	url, err := d.Put(context.Background(), "donations/L1/my photo.png", []byte("one"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/donations/L1/my%20photo.png", url)

	url2, err := d.Put(context.Background(), "donations/L1/my photo.png", []byte("two"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, url, url2)

	data, err := os.ReadFile(filepath.Join(root, "donations", "L1", "my photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "donations", "L1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	srv := httptest.NewServer(http.StripPrefix("/media", d.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/media/donations/L1/my%20photo.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "two", string(body))
}

func TestDisk_PathStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	d, err := NewDisk(filepath.Join(root, "media"), "/media")
	require.NoError(t, err)

	url, err := d.Put(context.Background(), "../../escape.png", []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/media/escape.png", url)
	assert.FileExists(t, filepath.Join(root, "media", "escape.png"))
	assert.NoFileExists(t, filepath.Join(root, "escape.png"))

	_, err = d.Put(context.Background(), "/", []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	data := []byte("abc")

	url, err := m.Put(context.Background(), "donations/L1/a.png", data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "mem://donations/L1/a.png", url)

	data[0] = 'z'
	obj, ok := m.Get("donations/L1/a.png")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), obj.Data, "stored bytes are copied")
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = m.Put(context.Background(), "donations/L1/a.png", []byte("d"), "image/gif")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, m.Puts())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/foodshare.appspot.com/donations/L1/bread.png",
		PublicURL("foodshare.appspot.com", "donations/L1/bread.png"))
	assert.Equal(t,
		"https://storage.googleapis.com/b/donations/L%3F1/a%23b%20c.png",
		PublicURL("b", "donations/L?1/a#b c.png"))
}
