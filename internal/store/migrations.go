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

CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	role          TEXT NOT NULL DEFAULT 'viewer',
	password_hash TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'Active' CHECK(status IN ('Active', 'Inactive')),
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	start_date  DATETIME,
	end_date    DATETIME,
	status      TEXT NOT NULL DEFAULT 'Planning',
	progress    INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
	manager_id  INTEGER,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	user_id    INTEGER NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'medium',
	status      TEXT NOT NULL DEFAULT 'back_log',
	assignee_id INTEGER,
	due_date    DATETIME,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	actor              TEXT NOT NULL,
	verb               TEXT NOT NULL,
	related_object_ref TEXT NOT NULL DEFAULT '',
	link               TEXT NOT NULL DEFAULT '',
	timestamp          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_read            INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1))
);

CREATE TABLE IF NOT EXISTS activity (
	id        TEXT PRIMARY KEY,
	user_name TEXT NOT NULL,
	action    TEXT NOT NULL,
	target    TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee_id ON tasks(assignee_id);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(is_read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_project_members_user_id
	ON project_members(user_id);

CREATE INDEX IF NOT EXISTS idx_activity_timestamp
	ON activity(timestamp);

CREATE INDEX IF NOT EXISTS idx_notifications_timestamp
	ON notifications(timestamp);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
