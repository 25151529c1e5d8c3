package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dartanool/user-balance-api/internal/storage"
)

// Directory answers account existence from the users table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Exists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return true, nil
}

var _ storage.Directory = (*Directory)(nil)
