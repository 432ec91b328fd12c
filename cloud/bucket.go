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

// Package cloud moves cutout files to and from blob storage.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// DefaultS3Region is used for s3 buckets when AWS_REGION is not set.
const DefaultS3Region = "us-east-2"

// openers open a bucket of the given name for each supported
// storage provider.
var openers = map[string]func(ctx context.Context, name string) (*blob.Bucket, error){
	"file": fileBucket,
	"gs":   gsBucket,
	"s3":   s3Bucket,
}

// Location is a file in blob storage.
type Location struct {
	// Provider is the storage provider: "file", "gs", or "s3".
	Provider string

	// Bucket is the name of the bucket. For the "file" provider
	// it is empty, meaning the filesystem root.
	Bucket string

	// Key is the path of the file within the bucket.
	Key string
}

// ParseLocation parses a blob location in the format
// 'provider://bucket/key'. Local directories are given as
// 'file:///path/to/dir'.
func ParseLocation(path string) (Location, error) {
	u, err := url.Parse(path)
	if err != nil {
		return Location{}, fmt.Errorf("cloud: parsing blob location '%s': %v", path, err)
	}
	if _, ok := openers[u.Scheme]; !ok {
		return Location{}, fmt.Errorf("cloud: invalid storage provider '%s' in '%s'; it must be one of %s",
			u.Scheme, path, strings.Join(providers(), ", "))
	}
	l := Location{Provider: u.Scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	if l.Provider != "file" && l.Bucket == "" {
		return Location{}, fmt.Errorf("cloud: blob location '%s' has no bucket name", path)
	}
	return l, nil
}

// BucketURL returns the location of the bucket holding l.
func (l Location) BucketURL() string { return l.Provider + "://" + l.Bucket }

func (l Location) String() string { return l.BucketURL() + "/" + l.Key }

func providers() []string {
	o := make([]string, 0, len(openers))
	for p := range openers {
		o = append(o, p+"://")
	}
	sort.Strings(o)
	return o
}

// IsBlob returns whether the given path represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	for _, p := range providers() {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// which must be in the format 'provider://name'. Any path after the
// name is ignored.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	l, err := ParseLocation(bucketName)
	if err != nil {
		return nil, err
	}
	b, err := openers[l.Provider](ctx, l.Bucket)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket %s: %v", l.BucketURL(), err)
	}
	return b, nil
}

func fileBucket(_ context.Context, name string) (*blob.Bucket, error) {
	if name == "" {
		name = "/"
	}
	return fileblob.OpenBucket(name, nil)
}

// gsBucket opens a Google Cloud Storage bucket using the application
// default credentials.
func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. Credentials are read from
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = DefaultS3Region
	}
	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
