package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Client defines the S3 operation the credential source needs
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DynamoClient defines the DynamoDB operation the credential source needs
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// S3Source reads the key from a single object. The object body is the key.
type S3Source struct {
	Client S3Client
	Bucket string
	Key    string
}

func (s S3Source) Get(ctx context.Context) (Credential, error) {
	if s.Bucket == "" || s.Key == "" {
		return Credential{}, fmt.Errorf("s3 source has no bucket or key: %w", ErrMissing)
	}

	result, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return Credential{}, fmt.Errorf("s3://%s/%s: %w", s.Bucket, s.Key, ErrMissing)
		}
		return Credential{}, fmt.Errorf("fetching s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Error().Err(err).Msg("Error closing S3 object body")
		}
	}(result.Body)

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("reading s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	cred := New(string(body))
	if cred.IsZero() {
		return Credential{}, fmt.Errorf("s3://%s/%s is empty: %w", s.Bucket, s.Key, ErrMissing)
	}
	log.Debug().Str("source", "s3").Str("bucket", s.Bucket).Msg("Loaded API key")
	return cred, nil
}

// DynamoSource reads the key from the apiKey attribute of one item.
type DynamoSource struct {
	Client    DynamoClient
	TableName string
	ID        string
}

type credentialRecord struct {
	ID     string `dynamodbav:"id"`
	APIKey string `dynamodbav:"apiKey"`
}

func (s DynamoSource) Get(ctx context.Context) (Credential, error) {
	if s.TableName == "" || s.ID == "" {
		return Credential{}, fmt.Errorf("dynamodb source has no table or id: %w", ErrMissing)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]dynamotypes.AttributeValue{
			"id": &dynamotypes.AttributeValueMemberS{Value: s.ID},
		},
	})
	if err != nil {
		return Credential{}, fmt.Errorf("getting item %s from %s: %w", s.ID, s.TableName, err)
	}
	if result.Item == nil {
		return Credential{}, fmt.Errorf("item %s not in %s: %w", s.ID, s.TableName, ErrMissing)
	}

	var record credentialRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return Credential{}, fmt.Errorf("unmarshaling item %s: %w", s.ID, err)
	}
	cred := New(record.APIKey)
	if cred.IsZero() {
		return Credential{}, fmt.Errorf("item %s has no apiKey: %w", s.ID, ErrMissing)
	}
	log.Debug().Str("source", "dynamodb").Str("table", s.TableName).Msg("Loaded API key")
	return cred, nil
}

// LoadAWSConfig returns the default AWS configuration, or a static local
// configuration when endpoint is set.
func LoadAWSConfig(ctx context.Context, endpoint string) (aws.Config, error) {
	if endpoint == "" {
		return config.LoadDefaultConfig(ctx)
	}

	log.Debug().Str("endpoint", endpoint).Msg("Using local AWS endpoint")
	return config.LoadDefaultConfig(ctx,
		config.WithRegion("local"),
		config.WithClientLogMode(aws.LogRetries),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
	)
}

// NewS3Client creates an S3 client, honouring S3_ENDPOINT for local stacks.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	cfg, err := LoadAWSConfig(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewDynamoClient creates a DynamoDB client, honouring DYNAMODB_ENDPOINT for
// local development.
func NewDynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	cfg, err := LoadAWSConfig(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// ParseS3URI splits "s3://bucket/key" into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs bucket and key: %q", uri)
	}
	return bucket, key, nil
}
