package binlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/uptrace/bun"
)

// ColumnLoader returns the ordered column names of a table.
type ColumnLoader interface {
	LoadColumns(ctx context.Context, schema, table string) ([]string, error)
}

// SchemaColumnLoader reads column names from information_schema.
type SchemaColumnLoader struct {
	db bun.IDB
}

// NewSchemaColumnLoader returns a loader querying db.
func NewSchemaColumnLoader(db bun.IDB) *SchemaColumnLoader {
	return &SchemaColumnLoader{db: db}
}

func (l *SchemaColumnLoader) LoadColumns(ctx context.Context, schema, table string) ([]string, error) {
	var names []string
	err := l.db.NewSelect().
		TableExpr("information_schema.COLUMNS").
		ColumnExpr("COLUMN_NAME").
		Where("TABLE_SCHEMA = ?", schema).
		Where("TABLE_NAME = ?", table).
		OrderExpr("ORDINAL_POSITION").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("load columns of %s.%s: %w", schema, table, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("table %s.%s has no columns", schema, table)
	}
	return names, nil
}

type tableColumns struct {
	schema string
	table  string
	count  uint64
	names  []string
}

// columnResolver names the columns of a table map event. It prefers the names the
// server writes with binlog_row_metadata=FULL and otherwise falls back to the loader,
// caching per table id.
type columnResolver struct {
	loader ColumnLoader

	mu    sync.Mutex
	cache map[uint64]tableColumns
}

func newColumnResolver(loader ColumnLoader) *columnResolver {
	return &columnResolver{loader: loader, cache: make(map[uint64]tableColumns)}
}

func (r *columnResolver) resolve(ctx context.Context, tme *replication.TableMapEvent) ([]string, error) {
	if len(tme.ColumnName) > 0 {
		return tme.ColumnNameString(), nil
	}

	schema, table := string(tme.Schema), string(tme.Table)

	r.mu.Lock()
	cached, ok := r.cache[tme.TableID]
	r.mu.Unlock()
	if ok && cached.schema == schema && cached.table == table && cached.count == tme.ColumnCount {
		return cached.names, nil
	}

	if r.loader == nil {
		return nil, fmt.Errorf("no column names for %s.%s: enable binlog_row_metadata=FULL or configure a column loader", schema, table)
	}
	names, err := r.loader.LoadColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if uint64(len(names)) != tme.ColumnCount {
		return nil, fmt.Errorf("%s.%s has %d columns but the binlog row has %d", schema, table, len(names), tme.ColumnCount)
	}

	r.mu.Lock()
	r.cache[tme.TableID] = tableColumns{schema: schema, table: table, count: tme.ColumnCount, names: names}
	r.mu.Unlock()
	return names, nil
}

// invalidate drops every cached table, used after DDL.
func (r *columnResolver) invalidate() {
	r.mu.Lock()
	r.cache = make(map[uint64]tableColumns)
	r.mu.Unlock()
}
