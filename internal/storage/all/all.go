// Package all registers every storage backend with the storage factory.
package all

import (
	_ "normalizer/internal/storage/mssql"
	_ "normalizer/internal/storage/mysql"
	_ "normalizer/internal/storage/postgres"
	_ "normalizer/internal/storage/sqlite"
)
