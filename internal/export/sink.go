package export

import (
	"bytes"
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/prowessninja/smsctl/internal/http"
	"github.com/prowessninja/smsctl/internal/models"
)

// Environment variables read by the Azure sink.
const (
	EnvAzureAccount  = "AZURE_STORAGE_ACCOUNT"
	EnvAzureSAS      = "AZURE_STORAGE_SAS_TOKEN"
	EnvAzureEndpoint = "AZURE_STORAGE_ENDPOINT" // full service URL, e.g. an Azurite emulator
)

// Sink stores an encoded export.
type Sink interface {
	Put(ctx context.Context, data []byte, contentType string) error
	String() string
}

// FileSink writes to a local path, creating parent directories.
type FileSink struct {
	Path string
}

func (s *FileSink) Put(_ context.Context, data []byte, _ string) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func (s *FileSink) String() string { return s.Path }

// S3Sink uploads with a single PutObject.
type S3Sink struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Sink resolves AWS credentials and region the standard SDK way
// (environment, shared config, instance role) and shares httpClient's
// transport so the configured proxy applies.
func NewS3Sink(ctx context.Context, httpClient *nethttp.Client, bucket, key string, optFns ...func(*s3.Options)) (*S3Sink, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if httpClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(httpClient))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Sink{
		client: s3.NewFromConfig(cfg, optFns...),
		bucket: bucket,
		key:    key,
	}, nil
}

func (s *S3Sink) Put(ctx context.Context, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3Sink) String() string { return fmt.Sprintf("s3://%s/%s", s.bucket, s.key) }

// AzureSink uploads a block blob using a SAS token.
type AzureSink struct {
	client    *azblob.Client
	container string
	blob      string
}

// NewAzureSink builds a client for the account named by
// AZURE_STORAGE_ACCOUNT (or the service URL in AZURE_STORAGE_ENDPOINT)
// authorised by AZURE_STORAGE_SAS_TOKEN.
func NewAzureSink(httpClient *nethttp.Client, container, blobName string) (*AzureSink, error) {
	serviceURL, err := azureServiceURL()
	if err != nil {
		return nil, err
	}

	var opts azblob.ClientOptions
	if httpClient != nil {
		opts.ClientOptions = azcore.ClientOptions{Transport: httpClient}
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &AzureSink{client: client, container: container, blob: blobName}, nil
}

func azureServiceURL() (string, error) {
	sas := strings.TrimPrefix(strings.TrimSpace(os.Getenv(EnvAzureSAS)), "?")
	if endpoint := strings.TrimSpace(os.Getenv(EnvAzureEndpoint)); endpoint != "" {
		endpoint = strings.TrimSuffix(endpoint, "/") + "/"
		if sas != "" {
			endpoint += "?" + sas
		}
		return endpoint, nil
	}

	account := strings.TrimSpace(os.Getenv(EnvAzureAccount))
	if account == "" {
		return "", fmt.Errorf("Azure storage account not set (%s or %s)", EnvAzureAccount, EnvAzureEndpoint)
	}
	if sas == "" {
		return "", fmt.Errorf("Azure SAS token not set (%s)", EnvAzureSAS)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/?%s", account, sas), nil
}

func (s *AzureSink) Put(ctx context.Context, data []byte, contentType string) error {
	_, err := s.client.UploadBuffer(ctx, s.container, s.blob, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to azblob://%s/%s: %w", s.container, s.blob, err)
	}
	return nil
}

func (s *AzureSink) String() string { return fmt.Sprintf("azblob://%s/%s", s.container, s.blob) }

// NewSink returns the sink for dest. httpClient carries the proxy
// configuration to the cloud SDKs and may be nil.
func NewSink(ctx context.Context, dest Destination, httpClient *nethttp.Client) (Sink, error) {
	switch dest.Scheme {
	case SchemeFile:
		return &FileSink{Path: dest.Key}, nil
	case SchemeS3:
		return NewS3Sink(ctx, httpClient, dest.Container, dest.Key)
	case SchemeAzure:
		return NewAzureSink(httpClient, dest.Container, dest.Key)
	default:
		return nil, fmt.Errorf("unsupported destination scheme %q", dest.Scheme)
	}
}

// Write encodes users and stores them in sink, retrying transient upload
// failures with backoff.
func Write(ctx context.Context, sink Sink, users []models.User, f Format) error {
	var buf bytes.Buffer
	if err := Encode(&buf, users, f); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	retryCfg := http.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("error_type", errType.String()).
			Str("destination", sink.String()).
			Msg("Retrying export upload")
	}

	data := buf.Bytes()
	if err := http.ExecuteWithRetry(ctx, retryCfg, func() error {
		return sink.Put(ctx, data, f.ContentType())
	}); err != nil {
		return err
	}

	log.Info().
		Int("users", len(users)).
		Int("bytes", len(data)).
		Str("format", string(f)).
		Str("destination", sink.String()).
		Msg("Export written")
	return nil
}
