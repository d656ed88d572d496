package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/PhucNguyen204/query_translator/pkg/translator"
)

// HistoryStore persists translations in PostgreSQL.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

type Record struct {
	ID              int64     `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	RuleID          string    `json:"rule_id"`
	Title           string    `json:"title"`
	Source          string    `json:"source"`
	Target          string    `json:"target"`
	SourceMappingID string    `json:"source_mapping_id,omitempty"`
	Query           string    `json:"query,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Save writes one row per rendered query, or a single row for a failure.
func (h *HistoryStore) Save(ctx context.Context, res *translator.Result, rerr *translator.RuleError) error {
	const stmt = `INSERT INTO translations(created_at, rule_id, title, source, target, source_mapping_id, query, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	now := time.Now().UTC()
	if rerr != nil {
		_, err := h.db.ExecContext(ctx, stmt, now, rerr.RuleID, rerr.Title, rerr.Source, rerr.Target, "", "", rerr.Err.Error())
		return err
	}
	for _, o := range res.Outputs {
		if _, err := h.db.ExecContext(ctx, stmt, now, res.RuleID, res.Title, res.Source, res.Target, o.SourceMappingID, o.Query, ""); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns the latest records, newest first.
func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT id, created_at, rule_id, title, source, target, source_mapping_id, query, error
        FROM translations ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.RuleID, &r.Title, &r.Source, &r.Target, &r.SourceMappingID, &r.Query, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
