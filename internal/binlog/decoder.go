package binlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-mysql-org/go-mysql/replication"

	"github.com/sultanlodh/Stream/internal/position"
)

// Filter selects the tables whose rows are decoded. Empty fields match everything.
type Filter struct {
	Schema string
	Tables []string
}

func (f Filter) match(schema, table string) bool {
	if f.Schema != "" && !strings.EqualFold(f.Schema, schema) {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if strings.EqualFold(t, table) {
			return true
		}
	}
	return false
}

// Decoder converts raw replication events into Events and tracks the current position.
// It is not safe for concurrent use.
type Decoder struct {
	filter  Filter
	columns *columnResolver
	pos     position.Position
	inTx    bool
}

// NewDecoder returns a decoder starting at start.
func NewDecoder(start position.Position, filter Filter, loader ColumnLoader) *Decoder {
	return &Decoder{
		filter:  filter,
		columns: newColumnResolver(loader),
		pos:     start,
	}
}

// Position returns the position right after the last decoded event.
func (d *Decoder) Position() position.Position {
	return d.pos
}

// Decode handles one event. It returns nil when the event yields nothing for callers.
func (d *Decoder) Decode(ctx context.Context, ev *replication.BinlogEvent) (*Event, error) {
	if ev == nil || ev.Header == nil {
		return nil, nil
	}

	switch e := ev.Event.(type) {
	case *replication.RotateEvent:
		d.pos = position.Position{File: string(e.NextLogName), Pos: uint32(e.Position)}
		return nil, nil
	case *replication.XIDEvent:
		d.advance(ev.Header)
		d.inTx = false
		return &Event{Commit: true, Position: d.pos}, nil
	case *replication.QueryEvent:
		d.advance(ev.Header)
		return d.query(strings.TrimSpace(string(e.Query))), nil
	case *replication.RowsEvent:
		d.advance(ev.Header)
		action, ok := rowsAction(ev.Header.EventType)
		if !ok || e.Table == nil {
			return nil, nil
		}
		schema, table := string(e.Table.Schema), string(e.Table.Table)
		if !d.filter.match(schema, table) {
			return nil, nil
		}
		change, err := d.change(ctx, ev.Header, e, action)
		if err != nil {
			return nil, err
		}
		return &Event{Change: change, Position: d.pos}, nil
	default:
		d.advance(ev.Header)
		return nil, nil
	}
}

// query handles statement events. Only the end of a transaction, or a statement run
// outside one (DDL), is a safe resume point. SAVEPOINT and other statements inside a
// transaction are not.
func (d *Decoder) query(q string) *Event {
	switch {
	case strings.EqualFold(q, "BEGIN"):
		d.inTx = true
		return nil
	case strings.EqualFold(q, "COMMIT"), strings.EqualFold(q, "ROLLBACK"):
		d.inTx = false
		return &Event{Commit: true, Position: d.pos}
	case d.inTx:
		return nil
	}
	d.columns.invalidate()
	return &Event{Commit: true, Position: d.pos}
}

// advance moves past an event. Artificial events carry LogPos 0 and do not move.
func (d *Decoder) advance(h *replication.EventHeader) {
	if h.LogPos > 0 {
		d.pos.Pos = h.LogPos
	}
}

func (d *Decoder) change(ctx context.Context, h *replication.EventHeader, e *replication.RowsEvent, action Action) (*Change, error) {
	columns, err := d.columns.resolve(ctx, e.Table)
	if err != nil {
		return nil, err
	}

	c := &Change{
		Schema:    string(e.Table.Schema),
		Table:     string(e.Table.Table),
		Action:    action,
		Columns:   columns,
		Position:  d.pos,
		Timestamp: time.Unix(int64(h.Timestamp), 0).UTC(),
	}

	if action == ActionUpdate {
		if len(e.Rows)%2 != 0 {
			return nil, fmt.Errorf("update event on %s.%s has %d images", c.Schema, c.Table, len(e.Rows))
		}
		for i := 0; i < len(e.Rows); i += 2 {
			c.Before = append(c.Before, buildRow(columns, e.Rows[i]))
			c.Rows = append(c.Rows, buildRow(columns, e.Rows[i+1]))
		}
		return c, nil
	}

	for _, raw := range e.Rows {
		c.Rows = append(c.Rows, buildRow(columns, raw))
	}
	return c, nil
}

func buildRow(columns []string, raw []interface{}) Row {
	row := make(Row, len(columns))
	for i, v := range raw {
		if i >= len(columns) {
			break
		}
		row[columns[i]] = normalize(v)
	}
	return row
}

func rowsAction(t replication.EventType) (Action, bool) {
	switch t {
	case replication.WRITE_ROWS_EVENTv0, replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return ActionInsert, true
	case replication.UPDATE_ROWS_EVENTv0, replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return ActionUpdate, true
	case replication.DELETE_ROWS_EVENTv0, replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		return ActionDelete, true
	}
	return "", false
}
