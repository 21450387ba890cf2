package backing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

const (
	s3Scheme = "s3://"
	// DeleteObjects accepts at most this many keys per request.
	s3DeleteBatch = 1000
)

// S3Config holds S3 connection settings.
type S3Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	// SpoolDir holds temp files while uploads are measured; "" means os.TempDir.
	SpoolDir string
}

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store keeps blobs in an S3-compatible bucket. Physical keys have the
// form s3://<bucket>/<name>-<uuid>.
type S3Store struct {
	client   s3API
	bucket   string
	spoolDir string
}

// loadDefaultAWSConfig is a seam for testing config.LoadDefaultConfig.
var loadDefaultAWSConfig = config.LoadDefaultConfig

// newS3ClientFromConfig is a seam for testing s3.NewFromConfig.
var newS3ClientFromConfig = s3.NewFromConfig

// NewS3Store builds an S3 client with static credentials and path-style
// addressing (required for MinIO).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", common.ErrorBackingStore, err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newS3StoreWithClient(client, cfg.Bucket, cfg.SpoolDir), nil
}

func newS3StoreWithClient(client s3API, bucket, spoolDir string) *S3Store {
	return &S3Store{client: client, bucket: bucket, spoolDir: spoolDir}
}

func (s *S3Store) Upload(ctx context.Context, r io.Reader, name string) (string, error) {
	return s.upload(ctx, r, name, -1)
}

func (s *S3Store) UploadSized(ctx context.Context, r io.Reader, name string, size int64) (string, error) {
	return s.upload(ctx, r, name, size)
}

// upload spools r to a temp file so the SDK gets a seekable body of known
// length, then puts it. declared < 0 means no size was declared.
func (s *S3Store) upload(ctx context.Context, r io.Reader, name string, declared int64) (string, error) {
	tmp, err := os.CreateTemp(s.spoolDir, "filestore-s3-*")
	if err != nil {
		return "", fmt.Errorf("%w: spool %s: %w", common.ErrorBackingStore, name, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return "", fmt.Errorf("%w: spool %s: %w", common.ErrorBackingStore, name, err)
	}
	if declared >= 0 && n != declared {
		return "", sizeMismatch(name, declared, n)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: spool %s: %w", common.ErrorBackingStore, name, err)
	}

	objectKey := blobName(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          tmp,
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %w", common.ErrorBackingStore, objectKey, err)
	}

	return s3Scheme + s.bucket + "/" + objectKey, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	bucket, objectKey, err := parseS3Key(key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("%w: delete object %s: %w", common.ErrorBackingStore, key, err)
	}
	return nil
}

// DeleteMany issues DeleteObjects per bucket in chunks of 1000 keys.
func (s *S3Store) DeleteMany(ctx context.Context, keys []string) error {
	byBucket := make(map[string][]types.ObjectIdentifier)
	var order []string
	for _, k := range keys {
		bucket, objectKey, err := parseS3Key(k)
		if err != nil {
			return err
		}
		if _, ok := byBucket[bucket]; !ok {
			order = append(order, bucket)
		}
		byBucket[bucket] = append(byBucket[bucket], types.ObjectIdentifier{Key: aws.String(objectKey)})
	}

	for _, bucket := range order {
		ids := byBucket[bucket]
		for start := 0; start < len(ids); start += s3DeleteBatch {
			chunk := ids[start:min(start+s3DeleteBatch, len(ids))]
			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: chunk, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("%w: delete objects in %s: %w", common.ErrorBackingStore, bucket, err)
			}
			for _, e := range out.Errors {
				if aws.ToString(e.Code) == "NoSuchKey" {
					continue
				}
				return fmt.Errorf("%w: delete object %s: %s", common.ErrorBackingStore, aws.ToString(e.Key), aws.ToString(e.Message))
			}
		}
	}
	return nil
}

func (s *S3Store) Download(ctx context.Context, key string) (*models.Download, error) {
	bucket, objectKey, err := parseS3Key(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, mapS3GetError(key, err)
	}

	return &models.Download{Body: out.Body, Length: aws.ToInt64(out.ContentLength)}, nil
}

func (s *S3Store) DownloadRange(ctx context.Context, key string, start, end int64) (*models.Download, error) {
	bucket, objectKey, err := parseS3Key(key)
	if err != nil {
		return nil, err
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: range %d-%d", common.ErrorInvalidArgument, start, end)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, mapS3GetError(key, err)
	}

	length, ok := totalFromContentRange(aws.ToString(out.ContentRange))
	if !ok {
		length = aws.ToInt64(out.ContentLength)
	}
	return &models.Download{Body: out.Body, Length: length}, nil
}

func (s *S3Store) Kind() models.BackingKind { return models.BackingS3 }

// parseS3Key splits s3://bucket/key.
func parseS3Key(key string) (bucket, objectKey string, err error) {
	rest, ok := strings.CutPrefix(key, s3Scheme)
	if ok {
		bucket, objectKey, ok = strings.Cut(rest, "/")
	}
	if !ok || bucket == "" || objectKey == "" {
		return "", "", fmt.Errorf("%w: not an s3 key: %q", common.ErrorInvalidArgument, key)
	}
	return bucket, objectKey, nil
}

// totalFromContentRange extracts the complete length from "bytes a-b/total".
func totalFromContentRange(cr string) (int64, bool) {
	_, total, ok := strings.Cut(cr, "/")
	if !ok || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func mapS3GetError(key string, err error) error {
	if isS3NotFound(err) {
		return fmt.Errorf("%w: unable to retrieve file: %s", common.ErrorNotFound, key)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
		return fmt.Errorf("%w: %s: %w", common.ErrorInvalidArgument, key, err)
	}
	return fmt.Errorf("%w: get object %s: %w", common.ErrorBackingStore, key, err)
}
