// seed-store provisions a development store: the tenant row, an API client
// identifier, the sequence counters, an admin user, and a printed admin JWT.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-store
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sruthreads/storefront_backend/config"
	"github.com/sruthreads/storefront_backend/models"
	"github.com/sruthreads/storefront_backend/utils"
	"gorm.io/gorm"
)

func main() {
	name := flag.String("name", "Dev Store", "store name")
	code := flag.String("code", "DEV", "short code used in order numbers")
	clientId := flag.String("client-id", "dev-client", "API client identifier (X-Client-Id)")
	adminMobile := flag.String("admin-mobile", "9999999999", "admin user mobile")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var store models.Store
	err := db.WithContext(ctx).Where("code = ?", *code).First(&store).Error
	if err == gorm.ErrRecordNotFound {
		store = models.Store{
			ID:          uuid.NewString(),
			Name:        *name,
			Code:        *code,
			Region:      "IN",
			ProductCode: "PRD",
			GatewayName: "cashfree",
			IsActive:    true,
			CreatedBy:   "seed",
			UpdatedBy:   "seed",
		}
		if err := db.WithContext(ctx).Create(&store).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create store: %v\n", err)
			os.Exit(1)
		}
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup store: %v\n", err)
		os.Exit(1)
	}

	for _, kind := range []models.SequenceKind{models.SequenceKindOrder, models.SequenceKindProduct} {
		seq := models.StoreSequence{StoreId: store.ID, Kind: string(kind)}
		if err := db.WithContext(ctx).Where("store_id = ? AND kind = ?", store.ID, kind).
			FirstOrCreate(&seq).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to provision %s sequence: %v\n", kind, err)
			os.Exit(1)
		}
	}

	client := models.StoreClient{StoreId: store.ID, Identifier: *clientId, ClientType: "web", IsActive: true}
	err = db.WithContext(ctx).Where("identifier = ?", *clientId).First(&models.StoreClient{}).Error
	if err == gorm.ErrRecordNotFound {
		client.ID = uuid.NewString()
		if err := db.WithContext(ctx).Create(&client).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create store client: %v\n", err)
			os.Exit(1)
		}
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup store client: %v\n", err)
		os.Exit(1)
	}

	var admin models.User
	err = db.WithContext(ctx).Where("store_id = ? AND mobile = ?", store.ID, *adminMobile).First(&admin).Error
	if err == gorm.ErrRecordNotFound {
		admin = models.User{
			ID:      uuid.NewString(),
			StoreId: store.ID,
			Name:    "Store Admin",
			Mobile:  *adminMobile,
		}
		if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(admin.ID, store.ID, admin.Mobile, "admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate admin token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("store_id:   %s\n", store.ID)
	fmt.Printf("client_id:  %s\n", *clientId)
	fmt.Printf("admin_id:   %s\n", admin.ID)
	fmt.Printf("admin_jwt:  %s\n", token)
}
