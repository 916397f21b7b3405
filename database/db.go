package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "hudumadb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Every table carries deleted_at for soft deletion; active rows are the
	// ones where it is NULL. Orders additionally carry the unique correlation
	// token handed back by the payment provider at checkout.
	createTablesQuery := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(80) UNIQUE NOT NULL,
		password_hash VARCHAR(200) NOT NULL,
		role VARCHAR(30) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS services (
		id SERIAL PRIMARY KEY,
		category VARCHAR(50) NOT NULL,
		name VARCHAR(100) UNIQUE NOT NULL,
		price DECIMAL(10, 2) NOT NULL CHECK (price >= 0),
		currency CHAR(3) NOT NULL DEFAULT 'KES',
		description VARCHAR(255) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		deleted_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cart_items (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		service_id INTEGER NOT NULL REFERENCES services(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		location VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		service_id INTEGER NOT NULL REFERENCES services(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		location VARCHAR(255) NOT NULL DEFAULT '',
		total_price DECIMAL(10, 2) NOT NULL CHECK (total_price >= 0),
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		checkout_request_id VARCHAR(100) UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cart_items_user ON cart_items (user_id) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_orders_checkout_request ON orders (checkout_request_id);
	`

	if _, err := db.Exec(createTablesQuery); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
