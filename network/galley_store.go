package network

import (
	"fmt"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util/fileutil"
	"github.com/minio/minio-go"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"strings"
)

// GalleyStore resolves a galley to a file on local disk that the
// depositor can read. Release must be called with every path
// Fetch returns, once the file has been appended.
type GalleyStore interface {
	Fetch(galley models.Galley) (string, error)
	Release(localPath string) error
}

// LocalGalleyStore reads galleys directly from the host
// application's files directory.
type LocalGalleyStore struct {
	FilesDirectory string
}

func NewLocalGalleyStore(filesDirectory string) *LocalGalleyStore {
	return &LocalGalleyStore{FilesDirectory: filesDirectory}
}

// Fetch returns FilesDirectory/galley.FilePath. It does not copy
// the file.
func (store *LocalGalleyStore) Fetch(galley models.Galley) (string, error) {
	if galley.FilePath == "" {
		return "", fmt.Errorf("Galley %d has no file", galley.Id)
	}
	absPath := filepath.Join(store.FilesDirectory, filepath.Clean("/"+galley.FilePath))
	if !fileutil.FileExists(absPath) {
		return "", fmt.Errorf("Galley %d file %s does not exist", galley.Id, absPath)
	}
	return absPath, nil
}

// Release is a no-op. Local galleys belong to the host application.
func (store *LocalGalleyStore) Release(localPath string) error {
	return nil
}

// S3GalleyStore downloads galleys from an S3-compatible bucket into
// the staging directory.
type S3GalleyStore struct {
	client           *minio.Client
	bucket           string
	stagingDirectory string
}

// NewS3GalleyStore returns a store for bucket at endpoint. For
// endpoint, do not include the protocol. E.g. use "s3.amazonaws.com",
// not "https://s3.amazonaws.com".
func NewS3GalleyStore(endpoint, accessKeyId, secretAccessKey, bucket, stagingDirectory string, useSSL bool) (*S3GalleyStore, error) {
	// Setting the region up front saves a bucket location
	// lookup before every download.
	client, err := minio.NewWithRegion(endpoint, accessKeyId, secretAccessKey, useSSL, "us-east-1")
	if err != nil {
		return nil, errors.Wrap(err, "creating S3 client")
	}
	return &S3GalleyStore{
		client:           client,
		bucket:           bucket,
		stagingDirectory: stagingDirectory,
	}, nil
}

// Fetch downloads the galley's object to the staging directory.
func (store *S3GalleyStore) Fetch(galley models.Galley) (string, error) {
	key := strings.TrimLeft(galley.FilePath, "/")
	if key == "" {
		return "", fmt.Errorf("Galley %d has no file", galley.Id)
	}
	localPath := filepath.Join(store.stagingDirectory,
		fmt.Sprintf("galley_%d_%s", galley.Id, filepath.Base(key)))
	err := store.client.FGetObject(store.bucket, key, localPath, minio.GetObjectOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "downloading s3://%s/%s", store.bucket, key)
	}
	return localPath, nil
}

// Release deletes a downloaded galley from the staging directory.
func (store *S3GalleyStore) Release(localPath string) error {
	if !strings.HasPrefix(localPath, store.stagingDirectory) || !fileutil.LooksSafeToDelete(localPath, 12, 2) {
		return fmt.Errorf("Refusing to delete %s, which is outside the staging directory", localPath)
	}
	err := os.Remove(localPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
