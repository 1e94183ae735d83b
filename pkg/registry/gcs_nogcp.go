//go:build !gcp

package registry

import (
	"context"
	"errors"
)

func NewGCSProvider(_ context.Context, _, _ string) (Provider, error) {
	return nil, errors.New("registry: GCS backend is not enabled in this build (use -tags gcp)")
}
