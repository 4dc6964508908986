package otablob

import (
	"bytes"
	"context"
	// Registers sha256 for go-digest.
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/frantjc/ota/internal/otaerr"
	"github.com/frantjc/ota/ios"
	"github.com/opencontainers/go-digest"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

const ContentTypePNG = "image/png"

// Store keeps packages and icons in a bucket.
type Store struct {
	Bucket *blob.Bucket
}

var _ ios.IconStore = &Store{}

func (s *Store) WriteIcon(ctx context.Context, name string, b []byte) (ios.IconRef, error) {
	if _, err := Copy(ctx, s.Bucket, IconKey(name), bytes.NewReader(b), ContentTypePNG); err != nil {
		return ios.IconRef{}, err
	}

	return ios.IconRef{Name: name, Path: IconPath(name)}, nil
}

// WritePackage stores r under fileName, returning its size and digest.
func (s *Store) WritePackage(ctx context.Context, fileName string, r io.Reader) (int64, digest.Digest, error) {
	digester := digest.Canonical.Digester()

	n, err := Copy(ctx, s.Bucket, PackageKey(fileName), io.TeeReader(r, digester.Hash()), ios.ContentTypeIPA)
	if err != nil {
		return n, "", err
	}

	return n, digester.Digest(), nil
}

// NewReader opens key, failing with a 404 if it does not exist.
func (s *Store) NewReader(ctx context.Context, key string) (*blob.Reader, error) {
	r, err := s.Bucket.NewReader(ctx, key, nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, otaerr.HTTPStatusCodeError(fmt.Errorf("%s not found", key), http.StatusNotFound)
	} else if err != nil {
		return nil, err
	}

	return r, nil
}

// Delete removes each of keys, ignoring those that do not exist.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	errs := []error{}

	for _, key := range keys {
		if err := s.Bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
