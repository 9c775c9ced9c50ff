package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/schema"
)

// Action is one named SQL statement. Params name the slots bound, in
// order, to the statement's ? placeholders; missing slots bind NULL.
type Action struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Statement   string   `yaml:"statement"`
	Params      []string `yaml:"params"`
	// Types declares parameter types, e.g. {guests: int}. Slot values are
	// coerced before they are bound; undeclared params bind as they are.
	Types map[string]string `yaml:"types"`
	// Exec marks statements that change data. They return the affected row count.
	Exec bool `yaml:"exec"`
}

// ActionFile is the YAML layout of an action file.
type ActionFile struct {
	// Schema runs once when the data source is opened.
	Schema  string   `yaml:"schema"`
	Actions []Action `yaml:"actions"`
}

// DataSource implements ports.DataSource with SQL actions.
type DataSource struct {
	db      *sql.DB
	actions []Action
	schemas []schema.Schema
	index   map[string]int
}

// LoadActions reads an action file.
func LoadActions(path string) (*ActionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read action file: %w", err)
	}
	var f ActionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse action file %s: %w", path, err)
	}
	return &f, nil
}

// NewDataSource applies the file's schema and indexes its actions.
func NewDataSource(ctx context.Context, db *sql.DB, f *ActionFile) (*DataSource, error) {
	if f.Schema != "" {
		if _, err := db.ExecContext(ctx, f.Schema); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	ds := &DataSource{db: db, index: make(map[string]int, len(f.Actions))}
	for _, a := range f.Actions {
		if a.Name == "" || a.Statement == "" {
			return nil, fmt.Errorf("action %q: name and statement are required", a.Name)
		}
		if _, dup := ds.index[a.Name]; dup {
			return nil, fmt.Errorf("%w: action %s", domain.ErrDuplicateName, a.Name)
		}
		types, err := schema.ParseTypeMap(a.Types)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.Name, err)
		}
		ds.index[a.Name] = len(ds.actions)
		ds.actions = append(ds.actions, a)
		ds.schemas = append(ds.schemas, types)
	}
	return ds, nil
}

// Actions implements ports.DataSource.
func (d *DataSource) Actions() []domain.HandlerDescriptor {
	out := make([]domain.HandlerDescriptor, len(d.actions))
	for i, a := range d.actions {
		out[i] = domain.HandlerDescriptor{Name: a.Name, Description: a.Description}
	}
	return out
}

// Run implements ports.DataSource.
func (d *DataSource) Run(ctx context.Context, action string, params map[string]any) ([]map[string]any, error) {
	i, ok := d.index[action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	a := d.actions[i]

	params, err := schema.Coerce(d.schemas[i], params)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", action, err)
	}

	args := make([]any, len(a.Params))
	for j, p := range a.Params {
		args[j] = params[p]
	}

	if a.Exec {
		res, err := d.db.ExecContext(ctx, a.Statement, args...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		return []map[string]any{{"rows_affected": n}}, nil
	}

	rows, err := d.db.QueryContext(ctx, a.Statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}
