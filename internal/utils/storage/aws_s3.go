package storage

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/internal/utils"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type (
	AwsS3 interface {
		// UploadBase64Image decodes a base64 data URI and stores it under
		// the given folder, returning the public object URL.
		UploadBase64Image(ctx context.Context, dataURI string, folder string) (string, error)
	}

	awsS3 struct {
		client *s3.Client
		bucket string
		region string
	}
)

func NewAwsS3() AwsS3 {
	region := utils.GetConfig("AWS_S3_REGION")
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			utils.GetConfig("AWS_ACCESS_KEY"),
			utils.GetConfig("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		log.Printf("Error loading AWS config: %s\n", err)
	}

	return &awsS3{
		client: s3.NewFromConfig(cfg),
		bucket: utils.GetConfig("AWS_S3_BUCKET"),
		region: region,
	}
}

// DecodeBase64Image splits a "data:image/<ext>;base64,<payload>" data URI
// into the decoded payload and the file extension taken from the MIME
// subtype.
func DecodeBase64Image(dataURI string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURI, "data:image") {
		return nil, "", domain.ErrInvalidImage
	}

	parts := strings.SplitN(dataURI, ";base64,", 2)
	if len(parts) != 2 {
		return nil, "", domain.ErrInvalidImage
	}

	mimeParts := strings.SplitN(parts[0], "/", 2)
	if len(mimeParts) != 2 || mimeParts[1] == "" {
		return nil, "", domain.ErrInvalidImage
	}
	ext := mimeParts[1]

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, "", domain.ErrInvalidImage
	}

	return data, ext, nil
}

func (s *awsS3) UploadBase64Image(ctx context.Context, dataURI string, folder string) (string, error) {
	data, ext, err := DecodeBase64Image(dataURI)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s.%s", folder, uuid.New().String(), ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/" + ext),
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
