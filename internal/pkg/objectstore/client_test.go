package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the handful of path-style calls the client makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]bool
	deletes []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/test-bucket")
	key := strings.TrimPrefix(path, "/")
	query := r.URL.Query()

	switch {
	case r.Method == http.MethodHead && key != "":
		if f.objects[key] {
			w.Header().Set("Content-Length", "3")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodGet && query.Get("list-type") == "2":
		prefix := query.Get("prefix")
		var contents strings.Builder
		count := 0
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				fmt.Fprintf(&contents, "<Contents><Key>%s</Key><Size>3</Size></Contents>", k)
				count++
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>test-bucket</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
			prefix, count, contents.String())
	case r.Method == http.MethodPost && query.Has("delete"):
		body, _ := io.ReadAll(r.Body)
		for k := range f.objects {
			if strings.Contains(string(body), "<Key>"+k+"</Key>") {
				delete(f.objects, k)
				f.deletes = append(f.deletes, k)
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></DeleteResult>`)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), &Config{
		AccessKeyID:     "test",
		SecretAccessKey: "test-secret",
		Region:          "us-east-1",
		BucketName:      "test-bucket",
		EndpointURL:     endpoint,
		PresignTTL:      10 * time.Minute,
		Enabled:         true,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientDisabled(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Enabled: false})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewClient(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPresignGet(t *testing.T) {
	client := newTestClient(t, "http://storage.local:9000")

	raw, err := client.PresignGet(context.Background(), "users/u-1/document.jpg", 0)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "storage.local:9000", u.Host)
	assert.Equal(t, "/test-bucket/users/u-1/document.jpg", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	raw, err = client.PresignGet(context.Background(), "/users/u-1/selfie.jpg", time.Minute)
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "60", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, "/test-bucket/users/u-1/selfie.jpg", u.Path)
}

func TestExists(t *testing.T) {
	fake := &fakeS3{objects: map[string]bool{"users/u-1/a.jpg": true}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	ok, err := client.Exists(context.Background(), "users/u-1/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(context.Background(), "users/u-1/missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePrefix(t *testing.T) {
	fake := &fakeS3{objects: map[string]bool{
		"users/u-1/a.jpg":   true,
		"users/u-1/b.jpg":   true,
		"users/u-2/own.jpg": true,
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	n, err := client.DeletePrefix(context.Background(), "users/u-1/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"users/u-1/a.jpg", "users/u-1/b.jpg"}, fake.deletes)
	assert.True(t, fake.objects["users/u-2/own.jpg"])

	_, err = client.DeletePrefix(context.Background(), "")
	assert.Error(t, err)
}

func TestLoadConfigRequiresCredentialsWhenEnabled(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_BUCKET_NAME", "bucket")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, 10*time.Minute, cfg.PresignTTL)
}
