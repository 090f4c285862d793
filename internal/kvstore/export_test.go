package kvstore

import "database/sql"

// DB exposes the internal *sql.DB for tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
