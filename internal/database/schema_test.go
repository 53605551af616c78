package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationFilesExist(t *testing.T) {
	migrationsDir := "../../migrations"

	// Check if migrations directory exists
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	// Expected migration files
	expectedMigrations := []string{
		"00001_create_users_table.sql",
		"00002_create_categories_table.sql",
		"00003_create_products_table.sql",
		"00004_create_cart_items_table.sql",
		"00005_create_orders_table.sql",
		"00006_create_order_items_table.sql",
		"00007_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	migrationsDir := "../../migrations"

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", file.Name(), err)
			continue
		}

		contentStr := string(content)

		// Check for goose Up directive
		if !strings.Contains(contentStr, "-- +goose Up") {
			t.Errorf("Migration file %s missing '-- +goose Up' directive", file.Name())
		}

		// Check for goose Down directive
		if !strings.Contains(contentStr, "-- +goose Down") {
			t.Errorf("Migration file %s missing '-- +goose Down' directive", file.Name())
		}

		// Check for StatementBegin/End
		if !strings.Contains(contentStr, "-- +goose StatementBegin") {
			t.Errorf("Migration file %s missing '-- +goose StatementBegin' directive", file.Name())
		}

		if !strings.Contains(contentStr, "-- +goose StatementEnd") {
			t.Errorf("Migration file %s missing '-- +goose StatementEnd' directive", file.Name())
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	migrationsDir := "../../migrations"

	expectedTables := map[string]string{
		"users":       "00001_create_users_table.sql",
		"categories":  "00002_create_categories_table.sql",
		"products":    "00003_create_products_table.sql",
		"cart_items":  "00004_create_cart_items_table.sql",
		"orders":      "00005_create_orders_table.sql",
		"order_items": "00006_create_order_items_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		content := readMigration(t, migrationsDir, migrationFile)

		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+tableName) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}

		if !strings.Contains(content, "DROP TABLE IF EXISTS "+tableName) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestUsersTableHasRequiredColumns(t *testing.T) {
	content := readMigration(t, "../../migrations", "00001_create_users_table.sql")

	requiredColumns := []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR",
		"email VARCHAR(255) NOT NULL UNIQUE",
		"password_hash VARCHAR",
		"role VARCHAR",
		"phone VARCHAR",
		"address TEXT",
		"created_at TIMESTAMPTZ",
		"updated_at TIMESTAMPTZ",
	}

	for _, column := range requiredColumns {
		if !strings.Contains(content, column) {
			t.Errorf("Users table missing required column definition: %s", column)
		}
	}
}

func TestProductsTableGuardsPriceAndStock(t *testing.T) {
	content := readMigration(t, "../../migrations", "00003_create_products_table.sql")

	for _, fragment := range []string{
		"category_id UUID NOT NULL REFERENCES categories(id)",
		"price NUMERIC(12, 2) NOT NULL CHECK (price >= 0)",
		"stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0)",
		"image VARCHAR",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("Products table missing definition: %s", fragment)
		}
	}
}

func TestOrdersTableHasStatusConstraint(t *testing.T) {
	content := readMigration(t, "../../migrations", "00005_create_orders_table.sql")

	for _, status := range []string{"pending", "processing", "shipped", "completed", "cancelled"} {
		if !strings.Contains(content, "'"+status+"'") {
			t.Errorf("Orders table status constraint missing value: %s", status)
		}
	}
}

func TestOrderItemsCascadeWithOrder(t *testing.T) {
	content := readMigration(t, "../../migrations", "00006_create_order_items_table.sql")

	if !strings.Contains(content, "REFERENCES orders(id) ON DELETE CASCADE") {
		t.Error("Order items are not deleted together with their order")
	}
	if !strings.Contains(content, "REFERENCES products(id) ON DELETE RESTRICT") {
		t.Error("Order items do not protect referenced products")
	}
}

func TestCartItemsTableHasUniqueConstraint(t *testing.T) {
	content := readMigration(t, "../../migrations", "00004_create_cart_items_table.sql")

	if !strings.Contains(content, "UNIQUE (user_id, product_id)") {
		t.Error("Cart items table missing unique constraint on (user_id, product_id)")
	}
}

func readMigration(t *testing.T, dir, name string) string {
	t.Helper()

	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}
