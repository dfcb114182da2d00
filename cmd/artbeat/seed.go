package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"artbeat/internal/explore"
	"artbeat/internal/store"
	"artbeat/shared/go/models"
)

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog into the database",
		Long:  "Inserts every placeholder card of the tuning file into the catalog tables. Existing ids are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Close()
			log := logger.Component("seed")

			if file == "" {
				file = cfg.Explore.TuningFile
			}
			placeholders, err := explore.LoadPlaceholderFile(file)
			if err != nil {
				return err
			}
			items := demoCatalog(placeholders)

			db, err := openDatabase(cmd.Context(), cfg.Database.URL, log)
			if err != nil {
				return err
			}
			defer db.Close()

			inserted, err := store.New(db).SeedCatalog(cmd.Context(), items)
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}

			log.Info().Int("inserted", inserted).Int("total", len(items)).Str("file", file).Msg("demo catalog seeded")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML catalog to seed from (defaults to EXPLORE_TUNING_FILE)")
	return cmd
}

// demoCatalog flattens the placeholder set in selector order.
func demoCatalog(placeholders explore.StaticPlaceholders) []models.ExploreItem {
	var items []models.ExploreItem
	for _, category := range models.Categories() {
		items = append(items, placeholders.Placeholders(category)...)
	}
	return items
}
