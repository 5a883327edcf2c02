package blobs

import (
	"context"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GCSBlobstore keeps blobs as objects named by their hash in a Google
// Cloud Storage bucket. Credentials come from the environment.
type GCSBlobstore struct {
	Bucket string
}

var _ Blobstore = (*GCSBlobstore)(nil)

// Upload copies sourcePath into the bucket unless the object exists.
func (j *GCSBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	log := klog.FromContext(ctx)

	src, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrap(err, "opening source file")
	}
	defer src.Close()

	objectKey := info.Hash
	gcsURL := "gs://" + j.Bucket + "/" + objectKey

	client, err := storage.NewClient(ctx)
	if err != nil {
		return errors.Wrap(err, "creating GCS storage client")
	}
	defer client.Close()

	obj := client.Bucket(j.Bucket).Object(objectKey)
	if _, err := obj.Attrs(ctx); err == nil {
		log.Info("object already exists in GCS", "url", gcsURL)
		return nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(err, "getting object attributes for %q", gcsURL)
	}

	log.Info("uploading blob to GCS", "source", sourcePath, "destination", gcsURL)
	startedAt := time.Now()
	w := obj.NewWriter(ctx)
	n, err := io.Copy(w, src)
	if err != nil {
		_ = w.Close()
		return errors.Wrap(err, "uploading to GCS")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "closing GCS writer")
	}
	log.Info("uploaded blob to GCS", "url", gcsURL, "bytes", n, "duration", time.Since(startedAt))
	return nil
}

// Download copies the object to destPath.
func (j *GCSBlobstore) Download(ctx context.Context, info BlobInfo, destPath string) error {
	log := klog.FromContext(ctx)

	objectKey := info.Hash
	gcsURL := "gs://" + j.Bucket + "/" + objectKey

	client, err := storage.NewClient(ctx)
	if err != nil {
		return errors.Wrap(err, "creating GCS storage client")
	}
	defer client.Close()

	log.Info("downloading blob from GCS", "source", gcsURL, "destination", destPath)
	startedAt := time.Now()
	r, err := client.Bucket(j.Bucket).Object(objectKey).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(os.ErrNotExist, "object %q", gcsURL)
	}
	if err != nil {
		return errors.Wrapf(err, "opening object from GCS %q", gcsURL)
	}
	defer r.Close()

	n, err := writeToFile(ctx, r, destPath)
	if err != nil {
		return errors.Wrap(err, "downloading from GCS")
	}
	log.Info("downloaded blob from GCS", "source", gcsURL, "destination", destPath, "bytes", n, "duration", time.Since(startedAt))
	return nil
}
