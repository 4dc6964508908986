package otablob

import (
	"context"
	"io"

	"gocloud.dev/blob"
)

// Copy writes r to key. The write is aborted if r fails, so key is
// either fully written or left untouched.
func Copy(ctx context.Context, bucket *blob.Bucket, key string, r io.Reader, contentType string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return n, err
	}

	if err = w.Close(); err != nil {
		return n, err
	}

	return n, nil
}
