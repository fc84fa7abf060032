package migrations

import (
	"database/sql"
	"strings"
)

func migration002AddBookmarkOrder() Migration {
	return Migration{
		Version:     2,
		Description: "add bookmark_order to illusts",
		Up:          migration002Up,
	}
}

func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE illusts ADD COLUMN bookmark_order INTEGER`)
	if err != nil && !isDuplicateColumn(err) {
		return err
	}
	return nil
}

// isDuplicateColumn tolerates re-adding a column that already exists, so a
// pre-existing store upgraded out of band does not fail migration.
func isDuplicateColumn(err error) bool {
	return strings.Contains(err.Error(), "duplicate column name")
}
