// seed-admin creates or resets the admin user of one business and puts the
// default gold rates on its board when the board is empty.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin --business-id shop-1 --username admin --password secret
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id the admin belongs to")
	username := flag.String("username", "admin", "Admin username")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "Admin password (default $ADMIN_PASSWORD)")
	name := flag.String("name", "Shop Admin", "Display name")
	skipRates := flag.Bool("skip-rates", false, "Do not seed default rates")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "--business-id and --password (or ADMIN_PASSWORD) are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := utils.SessionContext(context.Background(), *businessID, 0, "Seed")

	if err := upsertAdmin(ctx, db, *businessID, *username, *password, *name); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin user: %v\n", err)
		os.Exit(1)
	}
	if *skipRates {
		return
	}
	if err := seedRates(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed rates: %v\n", err)
		os.Exit(1)
	}
}

func upsertAdmin(ctx context.Context, db *gorm.DB, businessID, username, password, name string) error {
	var existing models.User
	err := db.WithContext(utils.SetAdminInContext(ctx)).Where("username = ?", username).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, err := models.CreateUser(ctx, &models.NewUser{
			BusinessId: businessID,
			Username:   username,
			Name:       name,
			Password:   password,
			Role:       models.UserRoleAdmin,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created admin user: username=%q business=%q\n", username, businessID)
		return nil
	}
	if err != nil {
		return err
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.WithContext(utils.SetAdminInContext(ctx)).Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"password":    hashed,
		"name":        name,
		"is_active":   utils.NewTrue(),
		"business_id": businessID,
		"role":        models.UserRoleAdmin,
	}).Error; err != nil {
		return err
	}
	_ = config.RemoveRedisKey(ctx, "User:"+username)
	fmt.Printf("Updated admin user: username=%q business=%q\n", username, businessID)
	return nil
}

func seedRates(ctx context.Context) error {
	rates, err := models.GetRates(ctx)
	if err != nil {
		return err
	}
	if len(rates) > 0 {
		fmt.Printf("Rate board already has %d rates; leaving it alone\n", len(rates))
		return nil
	}

	gold := config.DefaultGoldRate()
	ratios := map[string]decimal.Decimal{
		models.Purity24K: decimal.RequireFromString("1.0909"),
		models.Purity22K: decimal.NewFromInt(1),
		models.Purity18K: decimal.RequireFromString("0.8182"),
		models.Purity14K: decimal.RequireFromString("0.6364"),
	}
	for _, purity := range []string{models.Purity24K, models.Purity22K, models.Purity18K, models.Purity14K} {
		p := purity
		if _, err := models.SetRate(ctx, &models.NewRate{
			Metal:  models.MetalGold,
			Purity: &p,
			Price:  gold.Mul(ratios[p]).Round(2),
		}); err != nil {
			return err
		}
	}
	fmt.Printf("Seeded gold rates from %s per gram (22K)\n", gold)
	return nil
}
