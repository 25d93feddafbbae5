package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipelines (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pipeline_nodes (
    id            BIGSERIAL PRIMARY KEY,
    pipeline_id   BIGINT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
    position      INTEGER NOT NULL,
    type_name     TEXT NOT NULL,
    fields        JSONB NOT NULL DEFAULT '{}',
    dynamic_slots JSONB NOT NULL DEFAULT '[]',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pipeline_edges (
    id          BIGSERIAL PRIMARY KEY,
    pipeline_id BIGINT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
    node_a      BIGINT NOT NULL REFERENCES pipeline_nodes(id) ON DELETE CASCADE,
    node_b      BIGINT NOT NULL REFERENCES pipeline_nodes(id) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS devices (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    device_type TEXT NOT NULL,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    backend     TEXT NOT NULL DEFAULT '',
    format      TEXT NOT NULL DEFAULT '',
    sample_rate INTEGER NOT NULL DEFAULT 0,
    channels    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pipeline_nodes_pipeline ON pipeline_nodes(pipeline_id, position);
CREATE INDEX IF NOT EXISTS idx_pipeline_edges_pipeline ON pipeline_edges(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_edges_a        ON pipeline_edges(node_a);
CREATE INDEX IF NOT EXISTS idx_pipeline_edges_b        ON pipeline_edges(node_b);
`

// CreateSchema creates the pipeline and device tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table CreateSchema creates.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS pipeline_edges, pipeline_nodes, pipelines, devices CASCADE;`)
	return err
}
