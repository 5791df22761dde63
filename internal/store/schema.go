package store

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    action TEXT NOT NULL,
    env TEXT NOT NULL,
    package TEXT NOT NULL,
    spec TEXT,
    apps TEXT
);

CREATE TABLE IF NOT EXISTS exports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    export_dir TEXT NOT NULL,
    env_count INTEGER
);

CREATE TABLE IF NOT EXISTS export_envs (
    export_id INTEGER NOT NULL,
    env TEXT NOT NULL,
    main_package TEXT,
    version TEXT,
    PRIMARY KEY (export_id, env),
    FOREIGN KEY (export_id) REFERENCES exports(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_operations_env ON operations(env);
CREATE INDEX IF NOT EXISTS idx_operations_created ON operations(created_at);
CREATE INDEX IF NOT EXISTS idx_export_envs ON export_envs(export_id);
`
