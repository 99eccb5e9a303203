// Package s3 implements the media blob store on top of AWS S3 (or any
// S3-compatible endpoint such as MinIO).
package s3

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/pkg/errors"
)

const awsRegionHint = "us-east-1"

// MediaStore keeps post attachment blobs in an S3 bucket. The relational
// datastore only holds the storage key, the bytes live here.
type MediaStore struct {
	s3client        *s3.S3
	uploader        *s3manager.Uploader
	bucket          string
	prefix          string
	signedURLExpiry time.Duration
}

// New initializes an S3 MediaStore from the given configuration.
func New(config config.S3Config) (*MediaStore, error) {
	conf := &aws.Config{
		Region:           &config.Region,
		DisableSSL:       &config.DisableSSL,
		S3ForcePathStyle: &config.ForceS3PathStyle,
	}
	if config.EndpointURL != "" {
		conf.Endpoint = &config.EndpointURL
	}

	// Use the default auth provider chain if no static credentials were
	// provided
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		conf.Credentials = credentials.NewStaticCredentials(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)
	}

	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, errors.Wrap(err, "create S3 client")
	}

	// Assume role if configured
	if config.StsAssumeRoleArn != "" {
		creds := stscreds.NewCredentials(sess, config.StsAssumeRoleArn)
		conf.Credentials = creds
		sess, err = session.NewSession(conf)
		if err != nil {
			return nil, errors.Wrap(err, "create S3 client")
		}
	}

	if config.Region == "" && config.EndpointURL == "" {
		region, err := s3manager.GetBucketRegion(context.TODO(), sess, config.Bucket, awsRegionHint)
		if err != nil {
			return nil, errors.Wrap(err, "get bucket region")
		}
		sess = sess.Copy(&aws.Config{Region: &region})
	}

	return &MediaStore{
		s3client:        s3.New(sess),
		uploader:        s3manager.NewUploader(sess),
		bucket:          config.Bucket,
		prefix:          config.Prefix,
		signedURLExpiry: config.SignedURLExpiry,
	}, nil
}

// PutMedia uploads an attachment blob under the given storage key.
func (m *MediaStore) PutMedia(ctx context.Context, storageKey, contentType string, media io.ReadSeeker) error {
	if storageKey == "" {
		return errors.New("S3 storage key is empty")
	}

	key := m.keyForMedia(storageKey)
	_, err := m.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      &m.bucket,
		Key:         &key,
		Body:        media,
		ContentType: &contentType,
	})
	if err != nil {
		return ctxerr.Wrap(ctx, err, "uploading media to S3 store")
	}
	return nil
}

// SignedMediaURL returns a pre-signed GET URL for the attachment blob, valid
// for the configured expiry. Platform publishers hand this URL to the
// platform API so it can fetch the media itself.
func (m *MediaStore) SignedMediaURL(ctx context.Context, storageKey string) (string, error) {
	key := m.keyForMedia(storageKey)
	req, _ := m.s3client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
	})
	url, err := req.Presign(m.signedURLExpiry)
	if err != nil {
		return "", ctxerr.Wrap(ctx, err, "signing media URL")
	}
	return url, nil
}

// DeleteMedia removes the attachment blob. Deleting a key that does not
// exist is not an error, S3 delete is idempotent.
func (m *MediaStore) DeleteMedia(ctx context.Context, storageKey string) error {
	key := m.keyForMedia(storageKey)
	_, err := m.s3client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
	})
	if err != nil {
		return ctxerr.Wrap(ctx, err, "deleting media from S3 store")
	}
	return nil
}

// keyForMedia builds the S3 key for a storage key, accounting for the
// configured bucket prefix.
func (m *MediaStore) keyForMedia(storageKey string) string {
	return path.Join(m.prefix, "media", storageKey)
}
