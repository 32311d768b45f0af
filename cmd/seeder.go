package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/inventory-checkout/internal/inventory/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	rbacPostgres "github.com/frahmantamala/inventory-checkout/internal/rbac/postgres"
	"github.com/frahmantamala/inventory-checkout/pkg/logger"
	"github.com/spf13/cobra"
)

var withSampleInventory bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed default roles and permissions",
	Long:  `Ensure the built-in roles, permissions and grants exist. Optionally add sample inventory for development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

// sampleInventory prices are in minor units.
var sampleInventory = []inventory.CreateItemDTO{
	{Name: "Espresso Beans 1kg", Description: "Dark roast whole beans", Price: 2450, Quantity: 40, SKU: "BEAN-ESP-1KG"},
	{Name: "Paper Cups 12oz", Description: "Sleeve of 50", Price: 699, Quantity: 120, SKU: "CUP-12OZ-50"},
	{Name: "Oat Milk 1L", Description: "Barista edition", Price: 349, Quantity: 60, SKU: "MILK-OAT-1L"},
	{Name: "Ceramic Mug", Description: "350ml, white", Price: 1200, Quantity: 15, SKU: "MUG-CER-350"},
}

func init() {
	seedCmd.Flags().BoolVar(&withSampleInventory, "with-sample-inventory", false, "also create sample inventory items")
}

func runSeed(ctx context.Context) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gormDB, err := initGorm(db)
	if err != nil {
		return err
	}

	rbacService := rbac.NewService(rbacPostgres.NewRBACRepository(gormDB), lg)
	report, err := rbacService.EnsureDefaults(ctx)
	if err != nil {
		return fmt.Errorf("ensure defaults: %w", err)
	}
	lg.Info("seeded rbac defaults",
		"roles_created", report.RolesCreated,
		"permissions_created", report.PermissionsCreated,
		"links_created", report.LinksCreated)

	if !withSampleInventory {
		return nil
	}

	inventoryService := inventory.NewService(inventoryPostgres.NewInventoryRepository(gormDB), lg)
	created := 0
	for _, dto := range sampleInventory {
		// Seeded items have no owner.
		_, err := inventoryService.Create(ctx, 0, dto)
		if errors.Is(err, internal.ErrSKUTaken) {
			lg.Info("sample item already present", "sku", dto.SKU)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed item %s: %w", dto.SKU, err)
		}
		created++
	}
	lg.Info("seeded sample inventory", "created", created)
	return nil
}
