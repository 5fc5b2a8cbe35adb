package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
)

// BuildResource exposes buildResource for testing.
func BuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(context.Background(), cfg)
}
