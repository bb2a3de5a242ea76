package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

func getS3Client() (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("R2_ACCESS_KEY"),
			os.Getenv("R2_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", os.Getenv("R2_ACCOUNT_ID")))
		o.UsePathStyle = true
		o.Region = "auto"
	})

	return client, nil
}

// Enabled reports whether archive credentials are configured. Archiving
// is an optional audit feature; payment flows never depend on it.
func Enabled() bool {
	return os.Getenv("R2_ACCESS_KEY") != "" && os.Getenv("R2_BUCKET_NAME") != ""
}

// StoreWebhookPayload keeps the raw verified webhook body for audit.
// Object keys group by event type and day so a replay investigation can
// list one prefix.
func StoreWebhookPayload(eventID, eventType string, body []byte) (string, error) {
	safeType := slug.Make(eventType)
	safeID := eventID
	if safeID == "" {
		safeID = uuid.New().String()
	}

	objectKey := path.Join(
		"webhooks",
		safeType,
		time.Now().UTC().Format("2006-01-02"),
		safeID+".json",
	)

	client, err := getS3Client()
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(os.Getenv("R2_BUCKET_NAME")),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}

	_, err = client.PutObject(context.TODO(), input)
	if err != nil {
		return "", fmt.Errorf("could not archive webhook payload: %v", err)
	}

	return objectKey, nil
}
