package loader

import (
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithRoot sets the directory relative file locators are read from.
//
// Parameters:
//   - dir: the root directory
//
// Returns:
//   - LoaderBuilderOption: a function that applies the root option to a loader
func WithRoot(dir string) LoaderBuilderOption {
	return func(l *loader) {
		l.files = fileSource{root: dir}
	}
}

// WithObjectStore enables s3://bucket/key locators served by client.
//
// Parameters:
//   - client: an S3-compatible client
//
// Returns:
//   - LoaderBuilderOption: a function that applies the object store option to a loader
func WithObjectStore(client *minio.Client) LoaderBuilderOption {
	return func(l *loader) {
		if client != nil {
			l.objects = objectSource{client: client}
		}
	}
}

// WithContent pre-populates the content cache.
//
// Parameters:
//   - key: the cache key, "<locator>:<lod>"
//   - c: the content
//
// Returns:
//   - LoaderBuilderOption: a function that applies the content option to a loader
func WithContent(key string, c asset.Content) LoaderBuilderOption {
	return func(l *loader) {
		l.cache[key] = c
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger logrus.FieldLogger) LoaderBuilderOption {
	return func(l *loader) {
		l.logger = logger
	}
}

// NewObjectClient connects to an S3-compatible endpoint with static credentials.
//
// Parameters:
//   - endpoint: host:port of the store
//   - accessKey, secretKey: static credentials
//   - secure: use TLS
//
// Returns:
//   - *minio.Client: the client
//   - error: error if the endpoint is malformed
func NewObjectClient(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
}
