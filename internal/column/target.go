// Package column implements the columnar dataset layer (spec §4.D):
// a Writer/Reader pair that binds stable typed column addresses and
// advances one row (event) at a time, backed by parquet-go.
package column

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Target abstracts where the encoded dataset bytes live, adapted from
// the teacher's ParquetTarget (pkg/archive/parquet/target.go) with a
// read side added since our Reader re-opens what our Writer produced.
type Target interface {
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
}

// FileTarget stores datasets under a local directory.
type FileTarget struct {
	dir string
}

func NewFileTarget(dir string) (*FileTarget, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("column: create target directory: %w", err)
	}
	return &FileTarget{dir: dir}, nil
}

func (ft *FileTarget) WriteFile(name string, data []byte) error {
	return os.WriteFile(filepath.Join(ft.dir, name), data, 0o640)
}

func (ft *FileTarget) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(ft.dir, name))
}

// S3TargetConfig configures an S3-compatible dataset target.
type S3TargetConfig struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Target stores datasets as objects in an S3-compatible bucket.
type S3Target struct {
	client *s3.Client
	bucket string
}

func NewS3Target(cfg S3TargetConfig) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("column: S3 target requires a bucket name")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("column: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &S3Target{client: s3.NewFromConfig(awsCfg, opts), bucket: cfg.Bucket}, nil
}

func (st *S3Target) WriteFile(name string, data []byte) error {
	_, err := st.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return fmt.Errorf("column: S3 put object %q: %w", name, err)
	}
	return nil
}

func (st *S3Target) ReadFile(name string) ([]byte, error) {
	out, err := st.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("column: S3 get object %q: %w", name, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("column: S3 read object %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// OpenTarget selects a Target implementation from a run.output-style URI:
// "s3://bucket/prefix" or a plain filesystem path (default).
func OpenTarget(uri string, s3cfg *S3TargetConfig) (Target, string, error) {
	if strings.HasPrefix(uri, "s3://") {
		if s3cfg == nil {
			return nil, "", fmt.Errorf("column: %q requires an s3 target configuration", uri)
		}
		rest := strings.TrimPrefix(uri, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		cfg := *s3cfg
		cfg.Bucket = parts[0]
		name := ""
		if len(parts) == 2 {
			name = parts[1]
		}
		t, err := NewS3Target(cfg)
		return t, name, err
	}

	dir, name := filepath.Split(uri)
	t, err := NewFileTarget(dir)
	return t, name, err
}
