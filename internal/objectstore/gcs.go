// Package objectstore holds the blob backends used for listing images:
// Firebase Storage (a Cloud Storage bucket), the local filesystem and
// process memory.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS writes objects to a Cloud Storage bucket, normally the project's
// Firebase Storage bucket, and makes them world-readable.
type GCS struct {
	bucket *storage.BucketHandle
	name   string
}

// NewGCS wraps a bucket handle. name is the bucket name used in public URLs.
func NewGCS(bucket *storage.BucketHandle, name string) *GCS {
	return &GCS{bucket: bucket, name: name}
}

// Put uploads data to objectPath, overwriting any previous object.
func (g *GCS) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	obj := g.bucket.Object(objectPath)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=300"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", objectPath, err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("make object %s public: %w", objectPath, err)
	}
	return PublicURL(g.name, objectPath), nil
}

// PublicURL is the anonymous download URL of a public Cloud Storage object.
func PublicURL(bucket, objectPath string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + escapePath(objectPath)
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
