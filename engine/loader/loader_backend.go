package loader

import (
	"bufio"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/cockroachdb/errors"
	"github.com/minio/minio-go/v7"
)

// loaderBackend decodes one file format into content.
type loaderBackend interface {
	// Decode parses r, read from locator, into content.
	//
	// Parameters:
	//   - locator: where r was read from; used for ids and for resolving relative references
	//   - r: the file contents
	//
	// Returns:
	//   - asset.Content: the decoded content
	//   - error: error if the data is malformed
	Decode(locator string, r io.Reader) (asset.Content, error)
}

type rmeshBackend struct{}

func (rmeshBackend) Decode(locator string, r io.Reader) (asset.Content, error) {
	m, err := Decode(r)
	if err != nil {
		return nil, err
	}
	m.ID = locator
	return m, nil
}

// refBackend reads a text file whose first non-blank, non-comment line names another locator.
// Relative targets resolve against the directory of the .ref file.
type refBackend struct{}

func (refBackend) Decode(locator string, r io.Reader) (asset.Content, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") && !path.IsAbs(line) {
			line = joinLocator(locator, line)
		}
		return asset.Reference{Locator: line}, nil
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %q", locator)
	}
	return nil, errors.Newf("%q names no target", locator)
}

func joinLocator(base, rel string) string {
	if scheme, rest, ok := strings.Cut(base, "://"); ok {
		return scheme + "://" + path.Join(path.Dir(rest), rel)
	}
	return path.Join(path.Dir(base), rel)
}

// source opens raw bytes for a locator. A missing object yields an error matching common.ErrNotFound.
type source interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

type fileSource struct {
	root string
}

func (s fileSource) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	p := filepath.FromSlash(locator)
	if s.root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFound("file %q", p)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", p)
	}
	return f, nil
}

// objectSource reads s3://bucket/key locators from an S3-compatible store.
type objectSource struct {
	client *minio.Client
}

// ParseObjectLocator splits an s3://bucket/key locator.
//
// Parameters:
//   - locator: the locator
//
// Returns:
//   - bucket, key: the parts
//   - ok: false if locator is not an s3 locator
func ParseObjectLocator(locator string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(locator, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, ok = strings.Cut(rest, "/")
	return bucket, key, ok && bucket != "" && key != ""
}

func (s objectSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, key, ok := ParseObjectLocator(locator)
	if !ok {
		return nil, common.InvalidArgument("object locator %q", locator)
	}
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, common.NotFound("object %q", locator)
		}
		return nil, errors.Wrapf(err, "stat %q", locator)
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", locator)
	}
	return obj, nil
}
