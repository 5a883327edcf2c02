// Package blobs stores trained model artifacts (weights, checkpoints,
// half-precision exports) under content-addressed keys.
//
// A key is the hex SHA-256 of the artifact, so uploading the same file
// twice is a no-op and a download can be verified against its key.
package blobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// BlobReader fetches artifacts.
type BlobReader interface {
	// Download writes the blob to destPath. If no such object exists, the
	// error satisfies errors.Is(err, os.ErrNotExist).
	Download(ctx context.Context, info BlobInfo, destPath string) error
}

// Blobstore is a BlobReader that can also store artifacts.
type Blobstore interface {
	BlobReader
	// Upload stores the file at sourcePath under info.Hash. If an object
	// with the same hash already exists, Upload does nothing.
	Upload(ctx context.Context, sourcePath string, info BlobInfo) error
}

// BlobInfo identifies a blob.
type BlobInfo struct {
	Hash string
}

// HashFile returns the BlobInfo of the file at path.
func HashFile(path string) (BlobInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return BlobInfo{}, errors.Wrap(err, "opening file to hash")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return BlobInfo{}, errors.Wrapf(err, "hashing %s", path)
	}
	return BlobInfo{Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// Open returns the Blobstore for location: "gs://bucket" for Google Cloud
// Storage, otherwise a local directory (optionally prefixed with file://).
func Open(location string) (Blobstore, error) {
	switch {
	case strings.HasPrefix(location, "gs://"):
		bucket := strings.TrimSuffix(strings.TrimPrefix(location, "gs://"), "/")
		if bucket == "" || strings.Contains(bucket, "/") {
			return nil, errors.Errorf("invalid bucket in %q", location)
		}
		return &GCSBlobstore{Bucket: bucket}, nil
	case location == "":
		return nil, errors.New("empty blobstore location")
	default:
		return &LocalBlobstore{Dir: strings.TrimPrefix(location, "file://")}, nil
	}
}
