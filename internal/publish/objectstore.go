package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/dustin/go-humanize"
)

// AudioRoute is the HTTP path prefix under which signed artifacts are served.
const AudioRoute = "/api/podcast/audio/"

// Query parameters of a signed link.
const (
	QueryExpires   = "expires"
	QuerySignature = "signature"
)

// ErrBaseURLEmpty indicates links cannot be built without the public base URL.
var ErrBaseURLEmpty = errors.New("public base URL cannot be empty")

// ArtifactStore is the slice of the object store the publisher needs.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, reader io.Reader) (objectstore.ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error)
}

// ObjectStorePublisher implements core.ArtifactPublisher on top of the
// service's own object store. Its links point back at this service's
// AudioRoute and carry an HMAC signature instead of cloud credentials.
type ObjectStorePublisher struct {
	store   ArtifactStore
	signer  *LinkSigner
	baseURL string
	log     *logger.Logger
}

// NewObjectStorePublisher creates the publisher. baseURL is the externally
// reachable origin of the HTTP API, e.g. "http://localhost:8000".
func NewObjectStorePublisher(
	store ArtifactStore,
	signer *LinkSigner,
	baseURL string,
	log *logger.Logger,
) (*ObjectStorePublisher, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrBaseURLEmpty
	}

	return &ObjectStorePublisher{
		store:   store,
		signer:  signer,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}, nil
}

// Publish streams the file at localPath into the object store under key.
func (p *ObjectStorePublisher) Publish(ctx context.Context, localPath, key string) (core.PublishedArtifact, error) {
	file, size, contentType, err := openArtifact(localPath)
	if err != nil {
		return core.PublishedArtifact{}, err
	}
	defer file.Close()

	info, err := p.store.Put(ctx, key, contentType, file)
	if err != nil {
		return core.PublishedArtifact{}, fmt.Errorf("%w: %w", core.ErrPublish, err)
	}

	if info.Size != 0 {
		size = info.Size
	}

	p.log.Info("Stored %s as %s", humanize.Bytes(uint64(size)), key)

	return core.PublishedArtifact{Key: key, Size: size, ContentType: contentType}, nil
}

// LinkFor returns a signed link to the artifact valid for expiry.
func (p *ObjectStorePublisher) LinkFor(_ context.Context, artifact core.PublishedArtifact, expiry time.Duration) (string, error) {
	if artifact.Key == "" {
		return "", fmt.Errorf("%w: artifact key is empty", core.ErrPublish)
	}

	expires, signature := p.signer.Sign(artifact.Key, expiry)

	query := url.Values{}
	query.Set(QueryExpires, expires)
	query.Set(QuerySignature, signature)

	return p.baseURL + AudioRoute + escapeKey(artifact.Key) + "?" + query.Encode(), nil
}

// OpenSigned verifies a link's signature and opens the artifact it names.
func (p *ObjectStorePublisher) OpenSigned(
	ctx context.Context,
	key, expires, signature string,
) (io.ReadCloser, objectstore.ObjectInfo, error) {
	err := p.signer.Verify(key, expires, signature)
	if err != nil {
		return nil, objectstore.ObjectInfo{}, err
	}

	return p.store.Open(ctx, key)
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}
