package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/MikaYeghi/agent-first/pkg/adapters/memory"
	"github.com/MikaYeghi/agent-first/pkg/domain"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id      TEXT PRIMARY KEY,
	source  TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL
)`

// Retriever implements ports.Retriever over the documents table.
type Retriever struct {
	db *sql.DB
}

// NewRetriever creates the documents table if needed.
func NewRetriever(ctx context.Context, db *sql.DB) (*Retriever, error) {
	if _, err := db.ExecContext(ctx, documentsSchema); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Retriever{db: db}, nil
}

// Index inserts or replaces documents.
func (r *Retriever) Index(ctx context.Context, docs ...domain.Document) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents (id, source, content) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, d.ID, d.Source, d.Content); err != nil {
				return fmt.Errorf("index document %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// Retrieve selects the documents containing any query term and ranks them
// by the share of terms they contain.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	terms := memory.Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	clauses := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		clauses[i] = "lower(content) LIKE ?"
		args[i] = "%" + t + "%"
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, source, content FROM documents WHERE "+strings.Join(clauses, " OR ")+" ORDER BY id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Source, &d.Content); err != nil {
			return nil, err
		}
		d.Score = memory.Score(terms, d.Content)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}
