package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order at startup.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(26) PRIMARY KEY COMMENT 'ULID',
		provider_id VARCHAR(128) NOT NULL,
		name VARCHAR(255) NOT NULL,
		avatar VARCHAR(1024) NULL,
		bio TEXT NULL,
		access_token TEXT NOT NULL COMMENT 'sealed',
		refresh_token TEXT NULL COMMENT 'sealed',
		token_expires_at DATETIME(3) NULL,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_users_provider (provider_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id CHAR(26) PRIMARY KEY COMMENT 'ULID',
		host_id CHAR(26) NOT NULL,
		guest_id CHAR(26) NULL,
		item_name VARCHAR(255) NOT NULL,
		description TEXT NULL,
		list_price DOUBLE NOT NULL,
		min_price DOUBLE NOT NULL,
		max_price DOUBLE NULL,
		final_price DOUBLE NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'WAITING',
		is_processing TINYINT(1) NOT NULL DEFAULT 0,
		seller_session_id VARCHAR(64) NULL,
		buyer_session_id VARCHAR(64) NULL,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		KEY idx_rooms_status_updated (status, updated_at),
		CONSTRAINT fk_rooms_host FOREIGN KEY (host_id) REFERENCES users(id),
		CONSTRAINT fk_rooms_guest FOREIGN KEY (guest_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id CHAR(26) PRIMARY KEY COMMENT 'ULID',
		room_id CHAR(26) NOT NULL,
		sender VARCHAR(8) NOT NULL COMMENT 'SELLER | BUYER',
		round INT NOT NULL,
		content TEXT NOT NULL,
		price_offer DOUBLE NULL,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_messages_room_round (room_id, round),
		CONSTRAINT fk_messages_room FOREIGN KEY (room_id) REFERENCES rooms(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables the service needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
