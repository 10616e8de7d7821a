// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tiermem/pkg/vector"
	"github.com/papercomputeco/tiermem/pkg/vector/chroma"
	"github.com/papercomputeco/tiermem/pkg/vector/postgres"
	"github.com/papercomputeco/tiermem/pkg/vector/qdrant"
	"github.com/papercomputeco/tiermem/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is the server URL, DSN or database file path, depending on
	// the provider.
	TargetURL string

	Dimensions uint
	APIKey     string
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "chroma":
		return chroma.NewDriver(chroma.Config{URL: o.TargetURL}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(qdrant.Config{
			Target:     o.TargetURL,
			APIKey:     o.APIKey,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "postgres":
		return postgres.NewDriver(ctx, postgres.Config{
			ConnString: o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
