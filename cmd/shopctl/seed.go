package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/db"
	"github.com/xenking/beautivra/internal/api"
	"github.com/xenking/beautivra/internal/app"
	"github.com/xenking/beautivra/internal/domain/catalog"
	"github.com/xenking/beautivra/internal/storage/mongodb"
)

func seedCmd() *cobra.Command {
	var productsFile string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into an empty catalog database",
		Long: `Load products and reviews into the catalog. Nothing is written when the
catalog already has products. Without --products-file the embedded demo
catalog is used; files ending in .gz are decompressed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			lg := zctx.From(ctx)

			seed, err := loadSeed(productsFile)
			if err != nil {
				return err
			}

			cfg, err := app.LoadEnvConfig()
			if err != nil {
				return err
			}
			if cfg.Mongo.URL == "" {
				return errors.New("mongo URL is required: set SHOP_MONGO_URL or MONGO_URL")
			}
			database, err := mongodb.Connect(ctx, cfg.Mongo.URL, cfg.Mongo.Database)
			if err != nil {
				return errors.Wrap(err, "connect mongo")
			}
			store := mongodb.NewStore(database)
			defer func() { _ = store.Close(ctx) }()

			repo := mongodb.NewCatalogRepository(store)
			if err := repo.EnsureIndexes(ctx); err != nil {
				return errors.Wrap(err, "ensure indexes")
			}

			res, err := catalog.NewService(repo, nil).Seed(ctx, seed)
			if err != nil {
				return err
			}
			if !res.Seeded {
				lg.Info("Catalog already populated", zap.Int64("products", res.Existing))
				return nil
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products and %d reviews\n", res.Products, res.Reviews)
			return err
		},
	}
	cmd.Flags().StringVar(&productsFile, "products-file", "", "Catalog JSON file ({\"products\": [...], \"reviews\": [...]}), optionally gzipped")
	return cmd
}

// loadSeed reads the catalog at path, or the embedded one when path is empty.
func loadSeed(path string) (catalog.SeedData, error) {
	if path == "" {
		return api.DecodeSeed(db.Catalog)
	}

	f, err := os.Open(path)
	if err != nil {
		return catalog.SeedData{}, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return catalog.SeedData{}, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return catalog.SeedData{}, errors.Wrapf(err, "read %s", path)
	}
	seed, err := api.DecodeSeed(buf.Bytes())
	if err != nil {
		return catalog.SeedData{}, errors.Wrapf(err, "decode %s", path)
	}
	return seed, nil
}
