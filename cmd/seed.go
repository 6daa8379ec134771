package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/config"
	"github.com/molbhav/molbhav/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the catalog with demo products and coupons",
	Long: `Loads a small demo catalog into durable storage so the service can
be exercised immediately. Console storage overwrites on re-run; Postgres
rejects duplicate product ids.`,
	RunE: runSeed,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(seedCmd)
}

//nolint:gochecknoglobals
var seedProducts = []types.Product{
	{ID: "iphone-15", Name: "Apple iPhone 15", Category: "electronics", AnchorPrice: 79900, CostPrice: 65000, MinMargin: 0.05, TargetMargin: 0.15, Active: true},
	{ID: "nike-air-max", Name: "Nike Air Max 270", Category: "shoes", AnchorPrice: 12995, CostPrice: 7000, MinMargin: 0.10, TargetMargin: 0.30, Active: true},
	{ID: "samsung-tv-55", Name: "Samsung 55\" Crystal 4K TV", Category: "electronics", AnchorPrice: 54990, CostPrice: 38000, MinMargin: 0.08, TargetMargin: 0.20, Active: true},
	{ID: "levis-501", Name: "Levi's 501 Original Jeans", Category: "apparel", AnchorPrice: 4999, CostPrice: 2200, MinMargin: 0.12, TargetMargin: 0.35, Active: true},
	{ID: "boat-airdopes", Name: "boAt Airdopes 141", Category: "audio", AnchorPrice: 1299, CostPrice: 450, MinMargin: 0.15, TargetMargin: 0.40, Active: true},
}

//nolint:gochecknoglobals
var seedCoupons = []types.Coupon{
	{ID: "festive-5", Code: "FESTIVE5", MinPrice: 5000, MinRound: 6, DiscountPct: 0.05, MaxDiscount: 500, Active: true},
	{ID: "audio-10", Code: "AUDIO10", Category: "audio", MinRound: 4, DiscountPct: 0.10, MaxDiscount: 150, Active: true},
}

func runSeed(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := seedStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range seedProducts {
		err = store.CreateProduct(ctx, &seedProducts[i])
		if err != nil {
			return fmt.Errorf("create product %s: %w", seedProducts[i].ID, err)
		}
		logger.Info("product-seeded", zap.String("product-id", seedProducts[i].ID))
	}

	for i := range seedCoupons {
		err = store.CreateCoupon(ctx, &seedCoupons[i])
		if err != nil {
			return fmt.Errorf("create coupon %s: %w", seedCoupons[i].ID, err)
		}
		logger.Info("coupon-seeded", zap.String("coupon-id", seedCoupons[i].ID))
	}

	logger.Info("seed-complete",
		zap.Int("products", len(seedProducts)),
		zap.Int("coupons", len(seedCoupons)))

	return nil
}

func seedStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		return storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Timeout:  cfg.DurableTimeout,
			Logger:   logger,
		})
	}

	return storage.NewConsoleStorage(logger), nil
}
