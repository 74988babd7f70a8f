package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				id         TEXT PRIMARY KEY,
				agent_id   TEXT NOT NULL,
				opened_at  TEXT NOT NULL,
				closed_at  TEXT
			);

			CREATE INDEX idx_sessions_agent ON sessions (agent_id, opened_at);

			-- The exclusivity invariant: at most one open session per agent.
			-- The partial unique index makes the login claim a single atomic
			-- INSERT; concurrent claims for the same agent cannot both land.
			CREATE UNIQUE INDEX idx_sessions_open ON sessions (agent_id)
				WHERE closed_at IS NULL;
		`,
	},
}
