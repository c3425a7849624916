package store

// Schema for the pattern repository. Applied on Open; every statement is
// idempotent so reopening an existing database is safe.
//
// error_signatures and confidence_indicators are ordered string sequences
// stored as JSON arrays. encodeList/decodeList guarantee the round trip
// preserves order and content exactly.
const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL,
	description TEXT NOT NULL,
	error_signatures TEXT NOT NULL,
	confidence_indicators TEXT NOT NULL,
	solution_template TEXT NOT NULL,
	validation_script TEXT NOT NULL DEFAULT '',
	success_rate REAL NOT NULL DEFAULT 0,
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patterns_category ON patterns(category);
CREATE INDEX IF NOT EXISTS idx_patterns_success_rate ON patterns(success_rate DESC, usage_count DESC);

CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	pattern_id TEXT NOT NULL REFERENCES patterns(id),
	project_type TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	execution_time_ms INTEGER NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	context_snapshot TEXT NOT NULL DEFAULT '',
	applied_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_pattern_applied ON applications(pattern_id, applied_at);
`
