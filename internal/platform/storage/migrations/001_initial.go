package migrations

import (
	"gorm.io/gorm"
)

// Migration001Initial creates the attempt counter and row tables.
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001_initial"
}

func (m *Migration001Initial) Description() string {
	return "Create login attempt and sheet row tables"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS login_attempts (
			attempt_key VARCHAR(255) PRIMARY KEY,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			window_reset_at DATETIME NOT NULL,
			updated_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_login_attempts_window ON login_attempts(window_reset_at)`,
		`CREATE TABLE IF NOT EXISTS sheet_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sheet VARCHAR(255) NOT NULL,
			position INTEGER NOT NULL,
			cells JSON NOT NULL,
			updated_at DATETIME
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sheet_rows_position ON sheet_rows(sheet, position)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	for _, table := range []string{"sheet_rows", "login_attempts"} {
		if err := db.Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
