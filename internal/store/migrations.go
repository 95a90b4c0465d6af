package store

const schema = `
-- Per-user notification mode ({type, ...params})
CREATE TABLE IF NOT EXISTS notification_modes (
    user_id     TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    params      TEXT NOT NULL,
    updated_at  INTEGER NOT NULL
);
`
