package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/novabrands/storefront-api/internal/utils"
)

// Schema statements are idempotent so Migrate can run on every startup.
// users and products are the tables this core operates on; orders,
// order_items, favorites and cart belong to the outer storefront and are
// created here so the whole application shares one migration path.
// activity_log is filled by the queue consumer.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(50) UNIQUE NOT NULL,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(255) UNIQUE,
		phone VARCHAR(20) UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN DEFAULT FALSE,
		is_verified BOOLEAN DEFAULT FALSE,
		newsletter BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_email (email),
		INDEX idx_phone (phone),
		INDEX idx_user_id (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INT AUTO_INCREMENT PRIMARY KEY,
		product_id VARCHAR(50) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		category ENUM('skincare', 'haircare', 'perfumes') NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		stock_quantity INT DEFAULT 0,
		image_url VARCHAR(500),
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_category (category),
		INDEX idx_product_id (product_id),
		INDEX idx_active (is_active)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INT AUTO_INCREMENT PRIMARY KEY,
		order_id VARCHAR(50) UNIQUE NOT NULL,
		user_id VARCHAR(50) NOT NULL,
		total_amount DECIMAL(10, 2) NOT NULL,
		status ENUM('pending', 'processing', 'shipped', 'delivered', 'cancelled') DEFAULT 'pending',
		customer_name VARCHAR(200) NOT NULL,
		customer_email VARCHAR(255),
		customer_phone VARCHAR(20),
		shipping_address TEXT,
		notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_user_id (user_id),
		INDEX idx_order_id (order_id),
		INDEX idx_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id INT AUTO_INCREMENT PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL,
		product_id VARCHAR(50) NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_order_id (order_id),
		INDEX idx_product_id (product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL,
		product_id VARCHAR(50) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY unique_favorite (user_id, product_id),
		INDEX idx_user_id (user_id),
		INDEX idx_product_id (product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cart (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL,
		product_id VARCHAR(50) NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY unique_cart_item (user_id, product_id),
		INDEX idx_user_id (user_id),
		INDEX idx_product_id (product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id INT AUTO_INCREMENT PRIMARY KEY,
		action VARCHAR(50) NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		entity_id VARCHAR(50) NOT NULL,
		actor_id VARCHAR(50),
		detail TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_entity (entity_type, entity_id),
		INDEX idx_actor (actor_id)
	)`,
}

// Migrate creates all application tables. Statements use IF NOT EXISTS
// so repeated startups are safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// EnsureBootstrapAdmin guarantees exactly one admin account exists after
// startup. The existence check alone would race when several instances
// boot concurrently, so the insert additionally relies on the unique
// index on users.email: a duplicate-key failure means another instance
// won and is not an error.
func EnsureBootstrapAdmin(ctx context.Context, db *sql.DB, email, password string, cost int) error {
	var admins int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE is_admin = 1").Scan(&admins); err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return nil
	}

	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	adminID := utils.NewEntityID("admin")
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (user_id, first_name, last_name, email, password_hash, is_admin, is_verified)
		 VALUES (?, ?, ?, ?, ?, 1, 1)`,
		adminID, "Store", "Admin", strings.ToLower(strings.TrimSpace(email)), hash)
	if err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "1062") {
			return fmt.Errorf("insert bootstrap admin: %w", err)
		}
		// Duplicate key: either a concurrent bootstrap won the race, or
		// the configured email already belongs to a non-admin account.
		// Only the first case actually leaves an admin behind.
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM users WHERE is_admin = 1").Scan(&admins); err != nil {
			return fmt.Errorf("recount admins: %w", err)
		}
		if admins == 0 {
			return fmt.Errorf("bootstrap admin email %s is already taken by a non-admin account", email)
		}
	}
	return nil
}
