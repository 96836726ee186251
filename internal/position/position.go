// Package position persists the binlog coordinates the processor has applied up to.
package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a stored checkpoint cannot be decoded.
var ErrCorrupt = errors.New("checkpoint is corrupt")

// Position is a binlog file name and the offset of the next event to read.
type Position struct {
	File string `json:"file"`
	Pos  uint32 `json:"pos"`
}

// IsZero reports whether no position is set.
func (p Position) IsZero() bool {
	return p.File == "" && p.Pos == 0
}

// Compare orders positions by file then offset. Binlog file names share a prefix and a
// fixed-width sequence number, so lexical order matches creation order.
func (p Position) Compare(o Position) int {
	switch {
	case p.File < o.File:
		return -1
	case p.File > o.File:
		return 1
	case p.Pos < o.Pos:
		return -1
	case p.Pos > o.Pos:
		return 1
	}
	return 0
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Pos)
}

// Store loads and saves the last applied position.
type Store interface {
	// Load returns found=false when nothing has been saved yet.
	Load(ctx context.Context) (pos Position, found bool, err error)
	Save(ctx context.Context, pos Position) error
	Reset(ctx context.Context) error
}

func encode(p Position) ([]byte, error) {
	if p.File == "" {
		return nil, errors.New("position file name is empty")
	}
	return json.Marshal(p)
}

func decode(data []byte) (Position, error) {
	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if p.File == "" {
		return Position{}, fmt.Errorf("%w: missing file", ErrCorrupt)
	}
	return p, nil
}
