package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ledgermail/core/internal/database/models"
)

const (
	// presignExpiry is the lifetime of the download URL returned for an export
	presignExpiry = 7 * 24 * time.Hour
)

// objectPutter is the subset of the s3 client used for uploads
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// objectPresigner is the subset of the s3 presign client used for downloads
type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config holds the object storage settings of an S3Exporter
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	AccessKey string
	SecretKey string
}

// S3Exporter uploads a rendered email to an S3 bucket and returns a
// presigned download URL
type S3Exporter struct {
	bucket    string
	putter    objectPutter
	presigner objectPresigner
	now       func() time.Time
}

// NewS3Exporter creates a new S3Exporter from static credentials
func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Exporter{
		bucket:    cfg.Bucket,
		putter:    client,
		presigner: s3.NewPresignClient(client),
		now:       time.Now,
	}, nil
}

// objectKey returns the storage key of an email export
func (e *S3Exporter) objectKey(emailID string) string {
	d := e.now().UTC()
	return fmt.Sprintf("exports/%d/%02d/%s_%d.txt", d.Year(), int(d.Month()), emailID, d.UnixMilli())
}

// Export uploads the rendered email and presigns a download URL for it
func (e *S3Exporter) Export(ctx context.Context, email *models.EmailWithLabels) (*ExportedFile, error) {
	key := e.objectKey(email.ID)
	body := RenderEmailDocument(email)

	if _, err := e.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}); err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	req, err := e.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign export: %w", err)
	}

	return &ExportedFile{FileID: key, FileURL: req.URL}, nil
}

// RenderEmailDocument renders an email as a plain text document
func RenderEmailDocument(email *models.EmailWithLabels) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "From: %s <%s>\n", email.SenderName, email.SenderEmail)
	fmt.Fprintf(&b, "Received: %s\n", email.ReceivedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Category: %s\n", email.Category)
	if email.Amount != nil {
		fmt.Fprintf(&b, "Amount: %.2f\n", *email.Amount)
	}
	if len(email.Labels) > 0 {
		names := make([]string, len(email.Labels))
		for i, l := range email.Labels {
			names[i] = l.Name
		}
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(names, "; "))
	}
	if len(email.Attachments) > 0 {
		b.WriteString("Attachments:\n")
		for _, a := range email.Attachments {
			fmt.Fprintf(&b, "  - %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.Size)
		}
	}
	if email.Snippet != nil && *email.Snippet != "" {
		b.WriteString("\n")
		b.WriteString(*email.Snippet)
		b.WriteString("\n")
	}

	return []byte(b.String())
}
