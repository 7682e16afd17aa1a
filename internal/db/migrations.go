package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS car_policies (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate VARCHAR(32) NOT NULL,
		free BOOLEAN NOT NULL DEFAULT FALSE,
		special_taxi BOOLEAN NOT NULL DEFAULT FALSE,
		blocked BOOLEAN NOT NULL DEFAULT FALSE,
		position VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT car_policies_free_position CHECK (NOT free OR position IS NOT NULL)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_car_policies_plate ON car_policies (plate);`,
	`CREATE TABLE IF NOT EXISTS vehicle_sessions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate VARCHAR(32) NOT NULL,
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time TIMESTAMPTZ,
		entry_image_ref TEXT NOT NULL,
		exit_image_ref TEXT,
		amount BIGINT,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT vehicle_sessions_exit_after_entry CHECK (exit_time IS NULL OR exit_time >= entry_time),
		CONSTRAINT vehicle_sessions_amount_when_closed CHECK ((exit_time IS NULL AND amount IS NULL) OR (exit_time IS NOT NULL AND amount >= 0))
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_sessions_open_plate ON vehicle_sessions (plate) WHERE exit_time IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_sessions_entry_time ON vehicle_sessions (entry_time DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_sessions_plate_entry ON vehicle_sessions (plate, entry_time);`,
	`CREATE TABLE IF NOT EXISTS camera_events (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		direction VARCHAR(10) NOT NULL CHECK (direction IN ('entry', 'exit')),
		camera_id VARCHAR(64),
		raw_plate VARCHAR(64),
		plate VARCHAR(32),
		image_ref TEXT,
		event_time TIMESTAMPTZ NOT NULL,
		outcome VARCHAR(32) NOT NULL,
		reason VARCHAR(64),
		session_id UUID,
		raw_payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_camera_events_event_time ON camera_events (event_time DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_camera_events_plate ON camera_events (plate);`,
	`CREATE OR REPLACE FUNCTION set_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_car_policies_updated_at') THEN
			CREATE TRIGGER trg_car_policies_updated_at
				BEFORE UPDATE ON car_policies
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_vehicle_sessions_updated_at') THEN
			CREATE TRIGGER trg_vehicle_sessions_updated_at
				BEFORE UPDATE ON vehicle_sessions
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
