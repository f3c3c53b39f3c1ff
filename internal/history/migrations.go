package history

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    project_title TEXT,
    description TEXT,
    epics_count INTEGER DEFAULT 0,
    features_count INTEGER DEFAULT 0,
    repo_url TEXT,
    elapsed_seconds REAL DEFAULT 0,
    error TEXT,
    degraded BOOLEAN DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`
