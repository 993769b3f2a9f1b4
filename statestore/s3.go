package statestore

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3 is the external-kv Store implementation for a real multi-node
// fleet: both snapshots and integer counters live as objects in one
// bucket, keyed directly by the logical key (integers are stored as
// their decimal text form so IncrBy can read-modify-write them without a
// binary encoding).
type S3 struct {
	bucket string
	svc    *s3.S3
}

// NewS3 returns a Store backed by bucket in region, using the default AWS
// credential chain (the same one session.NewSession resolves for the
// teacher's own EC2 setup tooling).
func NewS3(bucket, region string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("statestore: %w", err)
	}
	return &S3{bucket: bucket, svc: s3.New(sess)}, nil
}

func (s *S3) GetInt64(ctx context.Context, key string) (int64, error) {
	data, err := s.getObject(ctx, key)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(string(data), 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("statestore: corrupt counter %q: %w", key, perr)
	}
	return n, nil
}

func (s *S3) SetInt64(ctx context.Context, key string, val int64) error {
	return s.putObject(ctx, key, []byte(strconv.FormatInt(val, 10)))
}

// IncrBy is not atomic against concurrent writers; S3 has no native
// increment primitive, and this mode is intended for at-most-one-writer
// accumulator usage (the reduction key is only ever mutated by the
// team's single current critical-section holder, which this runtime
// already serializes at the Go level on the local node issuing the PUT).
func (s *S3) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	cur, err := s.GetInt64(ctx, key)
	if err != nil && err != ErrNotFound {
		return 0, err
	}
	next := cur + delta
	if err := s.SetInt64(ctx, key, next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *S3) PutSnapshot(ctx context.Context, key string, data []byte) error {
	return s.putObject(ctx, "snapshot/"+key, data)
}

func (s *S3) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	return s.getObject(ctx, "snapshot/"+key)
}

func (s *S3) DeleteSnapshot(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String("snapshot/" + key),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *S3) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *S3) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer out.Body.Close()
	return ioutil.ReadAll(out.Body)
}
