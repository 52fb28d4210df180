package cmd

import (
	"fmt"
	"os"

	"storefront/repository"
	"storefront/services"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load categories, products, promo codes and an admin account from a YAML catalog",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().String("file", "catalog.yaml", "Catalog file")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cat, err := services.LoadCatalog(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	if err = repository.Migrate(ctx, b.db, cfg.DBDriver); err != nil {
		return err
	}

	seeder := b.seeder()
	res, err := seeder.Seed(ctx, cat)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "categories: %d, products: %d, promo codes: %d, admin created: %t\n",
		res.Categories, res.Products, res.PromoCodes, res.AdminCreated)
	return nil
}
