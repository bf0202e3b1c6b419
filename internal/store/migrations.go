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

CREATE TABLE IF NOT EXISTS deals (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	stage               TEXT NOT NULL,
	value_json          TEXT NOT NULL DEFAULT '{}',
	owner_json          TEXT NOT NULL DEFAULT '{}',
	documents_json      TEXT NOT NULL DEFAULT '[]',
	timeline_json       TEXT NOT NULL DEFAULT '[]',
	updated_at          DATETIME NOT NULL,
	has_offline_changes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	deal_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	folder      TEXT NOT NULL DEFAULT '/',
	mime_type   TEXT NOT NULL DEFAULT '',
	size_bytes  INTEGER NOT NULL DEFAULT 0,
	page_count  INTEGER NOT NULL DEFAULT 0,
	remote_url  TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL,
	local_path  TEXT
);

CREATE TABLE IF NOT EXISTS folders (
	deal_id TEXT NOT NULL,
	path    TEXT NOT NULL,
	name    TEXT NOT NULL,
	PRIMARY KEY (deal_id, path)
);

CREATE TABLE IF NOT EXISTS annotations (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	deal_id     TEXT NOT NULL,
	page        INTEGER NOT NULL DEFAULT 1,
	text        TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	synced      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS notification_snapshot (
	position INTEGER PRIMARY KEY,
	item     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deals_stage ON deals(stage);
CREATE INDEX IF NOT EXISTS idx_documents_deal_folder ON documents(deal_id, folder);
CREATE INDEX IF NOT EXISTS idx_annotations_document ON annotations(document_id, page);
CREATE INDEX IF NOT EXISTS idx_annotations_synced ON annotations(synced);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_deals_offline
	ON deals(has_offline_changes);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
