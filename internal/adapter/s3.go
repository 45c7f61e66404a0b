// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// s3BackendAdapter stores change batches as JSON objects. Batch keys embed
// the batch's maximum HLC, so lexicographic object order equals HLC order
// and a pull is a ListObjectsV2 with StartAfter at the watermark key.
type s3BackendAdapter struct {
	client *s3.Client
	bucket string
	prefix string
	logger *logger.Logger
}

// NewS3BackendAdapter constructs the object-storage implementation of
// [BackendAdapter]. Static credentials are used when provided, otherwise the
// default AWS credential chain applies. Endpoint overrides target
// S3-compatible stores (MinIO, Ceph RGW).
func NewS3BackendAdapter(ctx context.Context, cfg models.S3BackendConfig, log *logger.Logger) (BackendAdapter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &s3BackendAdapter{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: log,
	}, nil
}

func (s *s3BackendAdapter) Kind() models.BackendKind {
	return models.BackendS3
}

func (s *s3BackendAdapter) changesPrefix(vaultID string) string {
	return s.prefix + "changes/" + vaultID + "/"
}

func (s *s3BackendAdapter) keyObjectKey(vaultID string) string {
	return s.prefix + "keys/" + vaultID + ".json"
}

// Verify implements [BackendAdapter]. HeadBucket distinguishes credential
// failures from unreachable storage.
func (s *s3BackendAdapter) Verify(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

// Push implements [BackendAdapter]. The whole batch becomes one object
// keyed by the batch's maximum HLC; PutObject is atomic, so the ack always
// covers the full batch or nothing.
func (s *s3BackendAdapter) Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error) {
	if len(req.Changes) == 0 {
		return models.PushResponse{}, nil
	}

	maxHLC := req.Changes[0].HLC
	for _, change := range req.Changes[1:] {
		maxHLC = models.MaxHLC(maxHLC, change.HLC)
	}

	body, err := json.Marshal(req.Changes)
	if err != nil {
		return models.PushResponse{}, fmt.Errorf("%w: encode batch: %w", ErrBadRequest, err)
	}

	key := s.changesPrefix(req.VaultID) + maxHLC.String() + ".json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return models.PushResponse{}, mapS3Error(err)
	}

	return models.PushResponse{AckedHLC: maxHLC}, nil
}

// Pull implements [BackendAdapter]. Lists batch objects after the watermark
// key and filters individual changes, since a batch keyed above the
// watermark can still contain older changes.
func (s *s3BackendAdapter) Pull(ctx context.Context, vaultID string, after models.HLC, limit int) (models.PullResponse, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.changesPrefix(vaultID)),
	}
	if !after.IsZero() {
		input.StartAfter = aws.String(s.changesPrefix(vaultID) + after.String() + ".json")
	}

	var changes []models.RemoteChange
	seq := int64(0)

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return models.PullResponse{}, mapS3Error(err)
		}

		for _, obj := range page.Contents {
			batch, err := s.readBatch(ctx, aws.ToString(obj.Key))
			if err != nil {
				return models.PullResponse{}, err
			}
			for _, change := range batch {
				if change.HLC.Compare(after) <= 0 {
					continue
				}
				seq++
				changes = append(changes, models.RemoteChange{ChangeMessage: change, ServerSeq: seq})
			}
		}

		if limit > 0 && len(changes) >= limit {
			break
		}
	}

	sortRemoteChanges(changes)
	if limit > 0 && len(changes) > limit {
		changes = changes[:limit]
	}

	return models.PullResponse{Changes: changes, Length: len(changes)}, nil
}

// PullTableColumn implements [BackendAdapter]. Object storage has no
// server-side filtering, so the full vault history is scanned.
func (s *s3BackendAdapter) PullTableColumn(ctx context.Context, vaultID, table, column string) (models.PullResponse, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.changesPrefix(vaultID)),
	})

	var changes []models.RemoteChange
	seq := int64(0)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return models.PullResponse{}, mapS3Error(err)
		}

		for _, obj := range page.Contents {
			batch, err := s.readBatch(ctx, aws.ToString(obj.Key))
			if err != nil {
				return models.PullResponse{}, err
			}
			for _, change := range batch {
				if change.TableName != table || change.ColumnName != column {
					continue
				}
				seq++
				changes = append(changes, models.RemoteChange{ChangeMessage: change, ServerSeq: seq})
			}
		}
	}

	sortRemoteChanges(changes)
	return models.PullResponse{Changes: changes, Length: len(changes)}, nil
}

// FetchWrappedKey implements [BackendAdapter].
func (s *s3BackendAdapter) FetchWrappedKey(ctx context.Context, vaultID string) (models.WrappedKey, bool, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyObjectKey(vaultID)),
	})
	if err != nil {
		mapped := mapS3Error(err)
		if errors.Is(mapped, ErrKeyNotFound) {
			return models.WrappedKey{}, false, nil
		}
		return models.WrappedKey{}, false, mapped
	}
	defer func() { _ = resp.Body.Close() }()

	var key models.WrappedKey
	if err = json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return models.WrappedKey{}, false, fmt.Errorf("decode wrapped key object: %w", err)
	}

	return key, true, nil
}

// UploadWrappedKey implements [BackendAdapter].
func (s *s3BackendAdapter) UploadWrappedKey(ctx context.Context, key models.WrappedKey) error {
	body, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("encode wrapped key: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.keyObjectKey(key.VaultID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

func (s *s3BackendAdapter) Close() {}

func (s *s3BackendAdapter) readBatch(ctx context.Context, key string) ([]models.ChangeMessage, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read batch object: %w", ErrUnavailable, err)
	}

	var batch []models.ChangeMessage
	if err = json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("decode batch object %q: %w", key, err)
	}
	return batch, nil
}

func sortRemoteChanges(changes []models.RemoteChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].HLC.Compare(changes[j].HLC) < 0
	})
}

func mapS3Error(err error) error {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
