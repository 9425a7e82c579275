// Package storage archives raw evidence text in S3 compatible object
// storage. The graph only keeps derived assertions; the archive is the
// place to go back to when provenance questions come up.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rolohq/rolo/internal/util"
)

func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

func evidenceKey(ownerID, evidenceID string) string {
	return fmt.Sprintf("evidence/%s/%s.txt", ownerID, evidenceID)
}

// PutEvidence stores the raw note text under the owner's evidence prefix
// and returns the object key.
func PutEvidence(ctx context.Context, client *s3.Client, ownerID, evidenceID, text string) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	key := evidenceKey(ownerID, evidenceID)
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(text)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence to S3: %w", err)
	}
	return key, nil
}

func GetEvidence(ctx context.Context, client *s3.Client, ownerID, evidenceID string) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(evidenceKey(ownerID, evidenceID)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get evidence from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return "", fmt.Errorf("failed to read evidence contents: %w", err)
	}
	return buf.String(), nil
}

func DeleteEvidence(ctx context.Context, client *s3.Client, ownerID, evidenceID string) error {
	bucket := util.GetEnv("AWS_BUCKET")
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(evidenceKey(ownerID, evidenceID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete evidence from S3: %w", err)
	}
	return nil
}
