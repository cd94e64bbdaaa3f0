package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/equivet/moverisk/internal/grid"
	"github.com/equivet/moverisk/internal/store"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == "sqlite" && dsn == "" {
		dsn = "moverisk.db"
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func gridSpec() grid.Spec {
	return grid.Spec{
		MinLon:  cfg.Grid.MinLon,
		MinLat:  cfg.Grid.MinLat,
		MaxLon:  cfg.Grid.MaxLon,
		MaxLat:  cfg.Grid.MaxLat,
		CellDeg: cfg.Grid.CellDeg,
	}
}
