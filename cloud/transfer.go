/*
Copyright © 2020 the geodata authors.
This file is part of geodata.

geodata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geodata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geodata.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// MaybeDownload checks if path is an existing local file. If not, and
// path is an http(s) URL or a blob, it downloads the file to a
// temporary directory and returns the location of the downloaded file.
// Otherwise, it returns path unchanged.
func MaybeDownload(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	isHTTP := strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
	if !isHTTP && !IsBlob(path) {
		return path, nil
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	dir, err := os.MkdirTemp("", "geodata")
	if err != nil {
		return "", fmt.Errorf("cloud: creating temporary download directory: %v", err)
	}
	dst := filepath.Join(dir, filepath.Base(path))
	download := func() error { return downloadBlob(ctx, path, dst) }
	if isHTTP {
		download = func() error { return downloadHTTP(ctx, path, dst) }
	}
	err = retry(ctx, download, log.WithField("file", path))
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	log.WithFields(logrus.Fields{"file": path, "dst": dst}).Info("downloaded file")
	return dst, nil
}

// retry runs f until it succeeds, the context is canceled, or the
// exponential backoff gives up.
func retry(ctx context.Context, f func() error, log logrus.FieldLogger) error {
	return backoff.RetryNotify(
		f,
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		func(err error, d time.Duration) {
			log.WithError(err).Warnf("retrying in %v", d)
		},
	)
}

func downloadHTTP(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cloud: downloading %s: %v", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: downloading %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloud: downloading %s: %s", url, resp.Status)
	}
	return writeFile(dst, resp.Body)
}

func downloadBlob(ctx context.Context, path, dst string) error {
	l, err := ParseLocation(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	bucket, err := OpenBucket(ctx, l.BucketURL())
	if err != nil {
		return err
	}
	defer bucket.Close()
	r, err := bucket.NewReader(ctx, l.Key, nil)
	if err != nil {
		notFound := gcerrors.Code(err) == gcerrors.NotFound
		err = fmt.Errorf("cloud: reading blob %s: %v", l, err)
		if notFound {
			return backoff.Permanent(err)
		}
		return err
	}
	defer r.Close()
	return writeFile(dst, r)
}

func writeFile(dst string, r io.Reader) error {
	w, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cloud: creating file for download: %v", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: downloading to %s: %v", dst, err)
	}
	return w.Close()
}

// UploadDir copies every file in local directory dir to blob storage
// location dest, which is in the format 'provider://bucket/prefix'.
// Each file is stored at key 'prefix/filename'. Failed uploads are
// retried. It returns the number of files uploaded.
func UploadDir(ctx context.Context, dir, dest string, log logrus.FieldLogger) (int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l, err := ParseLocation(dest)
	if err != nil {
		return 0, err
	}
	prefix := l.Key
	bucket, err := OpenBucket(ctx, l.BucketURL())
	if err != nil {
		return 0, fmt.Errorf("cloud: opening bucket to upload to '%s': %v", dest, err)
	}
	defer bucket.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("cloud: reading directory for upload: %v", err)
	}
	var n int
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		file := filepath.Join(dir, e.Name())
		key := path.Join(prefix, e.Name())
		flog := log.WithFields(logrus.Fields{"file": file, "key": key})
		if err := retry(ctx, func() error { return uploadFile(ctx, bucket, file, key) }, flog); err != nil {
			return n, err
		}
		flog.Debug("uploaded file")
		n++
	}
	return n, nil
}

func uploadFile(ctx context.Context, bucket *blob.Bucket, file, key string) error {
	r, err := os.Open(file)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("cloud: opening file '%s' for upload: %v", file, err))
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: opening writer to upload file '%s': %v", key, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", file, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", file, key, err)
	}
	return nil
}
