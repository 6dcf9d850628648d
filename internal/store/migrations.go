package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS response_cache (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at DATETIME NOT NULL,
	ttl_ns     INTEGER NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
