package client

import (
	"context"

	"github.com/menta2k/watch-reader/pkg/types"
)

type VisionClient interface {
	Generate(ctx context.Context, req types.Request) (types.Response, error)
	Name() string
}
