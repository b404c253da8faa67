// Package gcs stores product images in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"

	"catalog/internal/pkg/errors"
	"catalog/internal/ports"
)

// Client implements ports.StorageProvider on one bucket. Object keys are
// object names.
type Client struct {
	client *storage.Client
	bucket string
}

func New(ctx context.Context, bucket string) (*Client, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "gcs.New", "create storage client")
	}
	return &Client{client: c, bucket: bucket}, nil
}

func (c *Client) Provider() string { return "gcs" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, errors.ValidationField("object_key", "object_key is required")
	}

	w := c.client.Bucket(c.bucket).Object(in.ObjectKey).NewWriter(ctx)
	if in.ContentType != "" {
		w.ContentType = in.ContentType
	}
	n, err := io.Copy(w, in.Reader)
	if err != nil {
		_ = w.Close()
		return ports.PutObjectOutput{}, errors.WrapWithCode(err, errors.CodeUnavailable, "gcs.PutObject", "write object")
	}
	if err := w.Close(); err != nil {
		return ports.PutObjectOutput{}, errors.WrapWithCode(err, errors.CodeUnavailable, "gcs.PutObject", "finalize object")
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	r, err := c.client.Bucket(c.bucket).Object(objectKey).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", 0, errors.NotFound("object", objectKey)
	}
	if err != nil {
		return nil, "", 0, errors.WrapWithCode(err, errors.CodeUnavailable, "gcs.GetObject", "open object")
	}
	return r, r.Attrs.ContentType, r.Attrs.Size, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	err := c.client.Bucket(c.bucket).Object(objectKey).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "gcs.DeleteObject", "delete object")
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.Bucket(c.bucket).Attrs(ctx); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "gcs.Ping", "bucket unreachable")
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
