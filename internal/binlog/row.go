package binlog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Row maps column names to normalized values.
type Row map[string]any

// normalize converts driver values into plain Go values: text as string, decimals as
// their exact string form, and times in UTC.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

// Int64 returns an integer column.
func (r Row) Int64(col string) (int64, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, fmt.Errorf("column %s is missing", col)
	}
	switch x := v.(type) {
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", col, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("column %s: unexpected type %T", col, v)
	}
}

// String returns a text column; NULL reads as "".
func (r Row) String(col string) string {
	v := r[col]
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(dateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// NullString returns a nullable text column; NULL and missing columns read as nil.
func (r Row) NullString(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Date returns a DATE column. NULL and the zero date read as the zero time.
func (r Row) Date(col string) (time.Time, error) {
	switch x := r[col].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case string:
		if x == "" || x == "0000-00-00" {
			return time.Time{}, nil
		}
		t, err := time.ParseInLocation(dateLayout, x, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("column %s: %w", col, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("column %s: unexpected type %T", col, x)
	}
}
