package migrations

import "database/sql"

func migration003AddFileSize() Migration {
	return Migration{
		Version:     3,
		Description: "add file_size to download_history",
		Up:          migration003Up,
	}
}

func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE download_history ADD COLUMN file_size INTEGER NOT NULL DEFAULT 0`)
	if err != nil && !isDuplicateColumn(err) {
		return err
	}
	return nil
}
