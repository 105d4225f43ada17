package database

import (
	"database/sql"
	"fmt"
	"time"

	"kinder-payment-svc/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("Database connection established", zap.String("database", cfg.Name))
	return db, nil
}

// Migrate creates the tables the service reads and writes if they don't exist.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'parent',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS children (
		id VARCHAR(64) PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		parent_id VARCHAR(64) NOT NULL REFERENCES users(id)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(64) PRIMARY KEY,
		transaction_id VARCHAR(64) UNIQUE,
		parent_id VARCHAR(64) NOT NULL,
		child_id VARCHAR(64),
		amount DECIMAL(10, 2) NOT NULL CHECK (amount > 0),
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		payment_method VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'processing', 'paid', 'failed', 'refunded', 'overdue')),
		description TEXT NOT NULL DEFAULT '',
		category VARCHAR(50) NOT NULL DEFAULT 'tuition',
		receipt_url TEXT,
		notes TEXT,
		due_date TIMESTAMP,
		paid_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`,
	`CREATE INDEX IF NOT EXISTS idx_payments_parent_id ON payments(parent_id);`,
	`
	CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(20) NOT NULL DEFAULT 'info',
		read BOOLEAN NOT NULL DEFAULT FALSE,
		link TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);`,
}
