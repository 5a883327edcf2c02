package blobs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LocalBlobstore keeps blobs as files named by their hash in Dir.
type LocalBlobstore struct {
	Dir string
}

var _ Blobstore = (*LocalBlobstore)(nil)

func (s *LocalBlobstore) path(info BlobInfo) (string, error) {
	if info.Hash == "" || filepath.Base(info.Hash) != info.Hash {
		return "", errors.Errorf("invalid blob hash %q", info.Hash)
	}
	return filepath.Join(s.Dir, info.Hash), nil
}

// Upload copies sourcePath into the store.
func (s *LocalBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	log := klog.FromContext(ctx)

	dest, err := s.path(info)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		log.Info("object already exists in blobstore", "path", dest)
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating blobstore directory")
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrap(err, "opening source file")
	}
	defer src.Close()

	startedAt := time.Now()
	n, err := writeToFile(ctx, src, dest)
	if err != nil {
		return errors.Wrap(err, "uploading to blobstore")
	}
	log.Info("uploaded blob", "source", sourcePath, "destination", dest, "bytes", n, "duration", time.Since(startedAt))
	return nil
}

// Download copies the blob to destPath.
func (s *LocalBlobstore) Download(ctx context.Context, info BlobInfo, destPath string) error {
	src, err := s.path(info)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening blob")
	}
	defer f.Close()

	if _, err := writeToFile(ctx, f, destPath); err != nil {
		return errors.Wrap(err, "downloading from blobstore")
	}
	return nil
}

// writeToFile writes src to destinationPath through a temporary file in
// the same directory, so destinationPath is either absent or complete.
func writeToFile(ctx context.Context, src io.Reader, destinationPath string) (int64, error) {
	log := klog.FromContext(ctx)

	dir := filepath.Dir(destinationPath)
	tempFile, err := os.CreateTemp(dir, "download")
	if err != nil {
		return 0, errors.Wrap(err, "creating temp file")
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, errors.Wrap(err, "copying from source")
	}
	if err := tempFile.Close(); err != nil {
		return n, errors.Wrap(err, "closing temp file")
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, errors.Wrap(err, "renaming temp file")
	}
	shouldDeleteTempFile = false
	return n, nil
}
