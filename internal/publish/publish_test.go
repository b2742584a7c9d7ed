package publish_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "publish-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func writeArtifact(t *testing.T, payload string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "podcast.mp3")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	return path
}

// memoryStore is an in-memory ArtifactStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key, contentType string, reader io.Reader) (objectstore.ObjectInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data
	m.types[key] = contentType

	return objectstore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ObjectInfo{}, objectstore.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), objectstore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func TestArtifactKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "podcasts/job-123.mp3", publish.ArtifactKey("job-123", audio.FORMAT_MP3))
}

func TestLinkSigner(t *testing.T) {
	t.Parallel()

	_, err := publish.NewLinkSigner([]byte("short"))
	require.ErrorIs(t, err, publish.ErrSigningKeyTooShort)

	signer, err := publish.NewLinkSigner(testSecret)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	signer = signer.WithClock(func() time.Time { return now })

	expires, signature := signer.Sign("podcasts/a.mp3", time.Hour)
	assert.Equal(t, "1700003600", expires)
	require.NoError(t, signer.Verify("podcasts/a.mp3", expires, signature))

	require.ErrorIs(t, signer.Verify("podcasts/b.mp3", expires, signature), publish.ErrLinkInvalid)
	require.ErrorIs(t, signer.Verify("podcasts/a.mp3", "1700009999", signature), publish.ErrLinkInvalid)
	require.ErrorIs(t, signer.Verify("podcasts/a.mp3", "soon", signature), publish.ErrLinkInvalid)

	later := signer.WithClock(func() time.Time { return now.Add(2 * time.Hour) })
	require.ErrorIs(t, later.Verify("podcasts/a.mp3", expires, signature), publish.ErrLinkExpired)

	other, err := publish.NewLinkSigner([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	require.ErrorIs(t, other.WithClock(func() time.Time { return now }).Verify("podcasts/a.mp3", expires, signature),
		publish.ErrLinkInvalid)
}

func TestEphemeralLinkSigner(t *testing.T) {
	t.Parallel()

	first, err := publish.NewEphemeralLinkSigner()
	require.NoError(t, err)

	second, err := publish.NewEphemeralLinkSigner()
	require.NoError(t, err)

	expires, signature := first.Sign("k", time.Minute)
	require.NoError(t, first.Verify("k", expires, signature))
	require.ErrorIs(t, second.Verify("k", expires, signature), publish.ErrLinkInvalid)
}

func TestObjectStorePublisher_PublishAndOpenSigned(t *testing.T) {
	t.Parallel()

	signer, err := publish.NewLinkSigner(testSecret)
	require.NoError(t, err)

	store := newMemoryStore()

	publisher, err := publish.NewObjectStorePublisher(store, signer, "http://localhost:8000/", newTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()

	artifact, err := publisher.Publish(ctx, writeArtifact(t, "mp3-bytes"), "podcasts/job 1.mp3")
	require.NoError(t, err)
	assert.Equal(t, core.PublishedArtifact{Key: "podcasts/job 1.mp3", Size: 9, ContentType: "audio/mpeg"}, artifact)

	link, err := publisher.LinkFor(ctx, artifact, publish.DefaultLinkExpiry)
	require.NoError(t, err)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8000", parsed.Host)
	assert.Equal(t, "/api/podcast/audio/podcasts/job 1.mp3", parsed.Path)

	key := strings.TrimPrefix(parsed.Path, publish.AudioRoute)

	reader, info, err := publisher.OpenSigned(ctx, key,
		parsed.Query().Get(publish.QueryExpires), parsed.Query().Get(publish.QuerySignature))
	require.NoError(t, err)

	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
	assert.Equal(t, "audio/mpeg", info.ContentType)

	_, _, err = publisher.OpenSigned(ctx, key, parsed.Query().Get(publish.QueryExpires), "forged")
	require.ErrorIs(t, err, publish.ErrLinkInvalid)
}

func TestObjectStorePublisher_Errors(t *testing.T) {
	t.Parallel()

	signer, err := publish.NewLinkSigner(testSecret)
	require.NoError(t, err)

	_, err = publish.NewObjectStorePublisher(newMemoryStore(), signer, " ", newTestLogger(t))
	require.ErrorIs(t, err, publish.ErrBaseURLEmpty)

	publisher, err := publish.NewObjectStorePublisher(newMemoryStore(), signer, "http://x", newTestLogger(t))
	require.NoError(t, err)

	_, err = publisher.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "k")
	require.ErrorIs(t, err, core.ErrPublish)

	_, err = publisher.LinkFor(context.Background(), core.PublishedArtifact{}, time.Minute)
	require.ErrorIs(t, err, core.ErrPublish)
}

func TestS3Publisher(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received = map[string]string{}
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)

			return
		}

		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		received[r.URL.Path] = string(body)
		received["content-type"] = r.Header.Get("Content-Type")
		mu.Unlock()

		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()

	publisher, err := publish.NewS3Publisher(ctx, publish.S3Options{
		Bucket:          "podcasts-bucket",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	}, newTestLogger(t))
	require.NoError(t, err)

	artifact, err := publisher.Publish(ctx, writeArtifact(t, "mp3-bytes"), "podcasts/job-1.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(9), artifact.Size)

	mu.Lock()
	assert.Equal(t, "mp3-bytes", received["/podcasts-bucket/podcasts/job-1.mp3"])
	assert.Equal(t, "audio/mpeg", received["content-type"])
	mu.Unlock()

	link, err := publisher.LinkFor(ctx, artifact, publish.DefaultLinkExpiry)
	require.NoError(t, err)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/podcasts-bucket/podcasts/job-1.mp3", parsed.Path)
	assert.Equal(t, "3600", parsed.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, parsed.Query().Get("X-Amz-Signature"))
}

func TestNewS3Publisher_RequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := publish.NewS3Publisher(context.Background(), publish.S3Options{Region: "us-east-1"}, newTestLogger(t))
	require.ErrorIs(t, err, publish.ErrBucketEmpty)
}
