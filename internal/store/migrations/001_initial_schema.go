package migrations

import "database/sql"

func migration001InitialSchema() Migration {
	return Migration{
		Version:     1,
		Description: "initial schema: users, illusts, download_history",
		Up:          migration001Up,
	}
}

const usersTableSQL = `
CREATE TABLE IF NOT EXISTS users (
	user_id           INTEGER PRIMARY KEY,
	name              TEXT NOT NULL,
	account           TEXT NOT NULL,
	profile_image_url TEXT,
	is_followed       INTEGER NOT NULL DEFAULT 0,
	first_seen_at     DATETIME NOT NULL,
	last_seen_at      DATETIME NOT NULL
)`

const illustsTableSQL = `
CREATE TABLE IF NOT EXISTS illusts (
	illust_id           INTEGER PRIMARY KEY,
	title               TEXT NOT NULL,
	caption             TEXT,
	author_id           INTEGER NOT NULL,
	create_date         DATETIME,
	page_count          INTEGER NOT NULL DEFAULT 1,
	width               INTEGER,
	height              INTEGER,
	total_bookmarks     INTEGER NOT NULL DEFAULT 0,
	total_view          INTEGER NOT NULL DEFAULT 0,
	sanity_level        INTEGER NOT NULL DEFAULT 0,
	x_restrict          INTEGER NOT NULL DEFAULT 0,
	work_type           TEXT NOT NULL DEFAULT 'illust',
	tags                TEXT NOT NULL DEFAULT '[]',
	image_urls          TEXT NOT NULL DEFAULT '{}',
	tools               TEXT NOT NULL DEFAULT '[]',
	downloaded          INTEGER NOT NULL DEFAULT 0,
	download_time       DATETIME,
	original_url        TEXT,
	is_bookmarked       INTEGER NOT NULL DEFAULT 0,
	is_following_author INTEGER NOT NULL DEFAULT 0,
	is_access_limited   INTEGER NOT NULL DEFAULT 0,
	first_seen_at       DATETIME NOT NULL,
	last_seen_at        DATETIME NOT NULL,
	FOREIGN KEY (author_id) REFERENCES users(user_id)
)`

const illustsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_illusts_author ON illusts(author_id);
CREATE INDEX IF NOT EXISTS idx_illusts_downloaded ON illusts(downloaded);
`

const downloadHistoryTableSQL = `
CREATE TABLE IF NOT EXISTS download_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	illust_id    INTEGER NOT NULL,
	file_path    TEXT NOT NULL,
	content_hash TEXT,
	downloaded_at DATETIME NOT NULL,
	FOREIGN KEY (illust_id) REFERENCES illusts(illust_id)
)`

const downloadHistoryIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_download_history_illust ON download_history(illust_id);
`

func migration001Up(tx *sql.Tx) error {
	if _, err := tx.Exec(usersTableSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(illustsTableSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(illustsIndexesSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(downloadHistoryTableSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(downloadHistoryIndexesSQL); err != nil {
		return err
	}
	return nil
}
