// Package registry PostgreSQL storage. Use: go get github.com/lib/pq and import _ "github.com/lib/pq".
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/distill-go/distill/core"
	"github.com/lib/pq"
)

// PostgresRegistry stores corpora in PostgreSQL.
type PostgresRegistry struct {
	db    *sql.DB
	table string
}

// NewPostgresRegistry creates a registry. table defaults to "corpora". If createTable is true, the table is created.
func NewPostgresRegistry(db *sql.DB, table string, createTable bool) (*PostgresRegistry, error) {
	if table == "" {
		table = "corpora"
	}
	r := &PostgresRegistry{db: db, table: table}
	if createTable {
		if err := r.createTable(context.Background()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PostgresRegistry) createTable(ctx context.Context) error {
	// Use placeholder that works with lib/pq ($1, $2) and pgx
	q := `CREATE TABLE IF NOT EXISTS ` + r.table + ` (
		id VARCHAR(255) NOT NULL,
		version VARCHAR(64) NOT NULL,
		name VARCHAR(255),
		description TEXT,
		source JSONB NOT NULL,
		target JSONB NOT NULL,
		metadata JSONB,
		stage VARCHAR(32) DEFAULT 'dev',
		tags JSONB,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ,
		PRIMARY KEY (id, version)
	)`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_`+r.table+`_id_stage ON `+r.table+`(id, stage)`)
	return err
}

func (r *PostgresRegistry) Store(ctx context.Context, corpus *core.Corpus) error {
	if corpus == nil || corpus.ID == "" || corpus.Version == "" {
		return fmt.Errorf("postgres registry: corpus id and version required")
	}
	source, _ := json.Marshal(corpus.Source)
	target, _ := json.Marshal(corpus.Target)
	metadata, _ := json.Marshal(corpus.Metadata)
	now := time.Now()
	if corpus.CreatedAt.IsZero() {
		corpus.CreatedAt = now
	}
	corpus.UpdatedAt = now
	q := `INSERT INTO ` + r.table + ` (id, version, name, description, source, target, metadata, stage, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'dev', '[]', $8, $9)
		ON CONFLICT (id, version) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			source = EXCLUDED.source, target = EXCLUDED.target, metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		corpus.ID, corpus.Version, corpus.Name, corpus.Description,
		source, target, metadata, corpus.CreatedAt, corpus.UpdatedAt)
	return err
}

func (r *PostgresRegistry) Get(ctx context.Context, id, version string) (*core.Corpus, error) {
	q := `SELECT id, version, name, description, source, target, metadata, created_at, updated_at FROM ` + r.table + ` WHERE id = $1 AND version = $2`
	return r.getRow(ctx, q, id, version)
}

func (r *PostgresRegistry) GetProduction(ctx context.Context, id string) (*core.Corpus, error) {
	q := `SELECT id, version, name, description, source, target, metadata, created_at, updated_at FROM ` + r.table + ` WHERE id = $1 AND stage = 'production' LIMIT 1`
	return r.getRow(ctx, q, id)
}

func (r *PostgresRegistry) getRow(ctx context.Context, q string, args ...interface{}) (*core.Corpus, error) {
	var c core.Corpus
	var source, target, metadata []byte
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&c.ID, &c.Version, &c.Name, &c.Description,
		&source, &target, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrCorpusNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(source, &c.Source)
	_ = json.Unmarshal(target, &c.Target)
	_ = json.Unmarshal(metadata, &c.Metadata)
	return c.Copy(), nil
}

func (r *PostgresRegistry) List(ctx context.Context, filter Filter) ([]*core.Corpus, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	q := `SELECT id, version, name, description, source, target, metadata, tags, created_at, updated_at FROM ` + r.table + ` WHERE 1=1`
	args := []interface{}{}
	argNum := 1
	if len(filter.IDs) > 0 {
		q += ` AND id = ANY($` + fmt.Sprint(argNum) + `)`
		args = append(args, pq.Array(filter.IDs))
		argNum++
	}
	if filter.Stage != "" {
		q += ` AND stage = $` + fmt.Sprint(argNum)
		args = append(args, string(filter.Stage))
		argNum++
	}
	q += ` ORDER BY id, version OFFSET $` + fmt.Sprint(argNum) + ` LIMIT $` + fmt.Sprint(argNum+1)
	args = append(args, filter.Offset, limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*core.Corpus
	for rows.Next() {
		var c core.Corpus
		var source, target, metadata, tagsRaw []byte
		if err := rows.Scan(&c.ID, &c.Version, &c.Name, &c.Description, &source, &target, &metadata, &tagsRaw, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(source, &c.Source)
		_ = json.Unmarshal(target, &c.Target)
		_ = json.Unmarshal(metadata, &c.Metadata)
		if len(filter.Tags) > 0 {
			var tags []string
			_ = json.Unmarshal(tagsRaw, &tags)
			if !hasAll(tags, filter.Tags) {
				continue
			}
		}
		out = append(out, c.Copy())
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) ListVersions(ctx context.Context, id string) ([]VersionInfo, error) {
	q := `SELECT id, version, stage, tags, jsonb_array_length(source), created_at, updated_at FROM ` + r.table + ` WHERE id = $1 ORDER BY version`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var infos []VersionInfo
	for rows.Next() {
		var vi VersionInfo
		var stage string
		var tags []byte
		if err := rows.Scan(&vi.ID, &vi.Version, &stage, &tags, &vi.Pairs, &vi.CreatedAt, &vi.UpdatedAt); err != nil {
			return nil, err
		}
		vi.Stage = Stage(stage)
		_ = json.Unmarshal(tags, &vi.Tags)
		infos = append(infos, vi)
	}
	return infos, rows.Err()
}

func (r *PostgresRegistry) Promote(ctx context.Context, id, version string, stage Stage) error {
	// Demote others of same id from production if promoting to production
	if stage == StageProduction {
		_, _ = r.db.ExecContext(ctx, `UPDATE `+r.table+` SET stage = 'dev' WHERE id = $1 AND stage = 'production'`, id)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE `+r.table+` SET stage = $1 WHERE id = $2 AND version = $3`, string(stage), id, version)
	return err
}

func (r *PostgresRegistry) Delete(ctx context.Context, id, version string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrCorpusNotFound
	}
	return nil
}

func (r *PostgresRegistry) Tag(ctx context.Context, id, version string, tags []string) error {
	data, _ := json.Marshal(tags)
	_, err := r.db.ExecContext(ctx, `UPDATE `+r.table+` SET tags = $1 WHERE id = $2 AND version = $3`, data, id, version)
	return err
}
