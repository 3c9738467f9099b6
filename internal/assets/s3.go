package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"
)

// S3Store keeps assets as objects in a bucket under a key prefix.
// A single PutObject is atomic: readers see either the old or the new object.
type S3Store struct {
	client    s3iface.S3API
	bucket    string
	prefix    string
	publicURL string
	maxBytes  int64
	logger    *zap.Logger
}

// S3Config configures an S3Store
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string
	PublicURL string
	Endpoint  string
	MaxBytes  int64
}

// NewS3Store creates an S3 backed store from the default credential chain
func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return NewS3StoreWithClient(s3.New(sess), cfg), nil
}

// NewS3StoreWithClient wraps an existing S3 client
func NewS3StoreWithClient(client s3iface.S3API, cfg S3Config) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		maxBytes:  cfg.MaxBytes,
		logger:    util.GetLogger(),
	}
}

// Put uploads content for entityID
func (s *S3Store) Put(ctx context.Context, entityID int64, filename string, content io.Reader) (string, error) {
	ctx, span := util.StartSpan(ctx, "S3Store.Put")
	defer span.End()

	locator := Locator(entityID, filename)
	start := time.Now()
	defer func() {
		util.AssetOperationLatency.WithLabelValues("put").Observe(time.Since(start).Seconds())
	}()

	// PutObject needs a seekable body
	body, err := io.ReadAll(limit(content, s.maxBytes))
	if err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(locator)),
		Body:   bytes.NewReader(body),
	}
	if ct := mime.TypeByExtension(path.Ext(locator)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}

	s.logger.Debug("Asset uploaded",
		zap.Int64("entity_id", entityID),
		zap.String("bucket", s.bucket),
		zap.String("locator", locator))
	return locator, nil
}

// Remove deletes the object behind locator
func (s *S3Store) Remove(ctx context.Context, locator string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "S3Store.Remove")
	defer span.End()

	if !validLocator(locator) {
		return false, models.NewAssetWriteError("remove", locator, errors.New("invalid locator"))
	}

	// DeleteObject succeeds for missing keys, so existence is checked first
	exists, err := s.Exists(ctx, locator)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(locator)),
	})
	if err != nil {
		return false, models.NewAssetWriteError("remove", locator, err)
	}
	return true, nil
}

// Exists reports whether the object behind locator is present
func (s *S3Store) Exists(ctx context.Context, locator string) (bool, error) {
	if !validLocator(locator) {
		return false, models.NewAssetReadError("head", locator, errors.New("invalid locator"))
	}

	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(locator)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, models.NewAssetReadError("head", locator, err)
}

// URL returns the public address of the object
func (s *S3Store) URL(locator string) string {
	return s.publicURL + "/" + s.key(locator)
}

func (s *S3Store) key(locator string) string {
	if s.prefix == "" {
		return locator
	}
	return s.prefix + "/" + locator
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
