package sqlstore

import (
	_ "github.com/genjidb/genji/driver"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)
