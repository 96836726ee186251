package binlog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-mysql-org/go-mysql/client"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/position"
)

// ErrNotOpen is returned by Next before Open succeeded or after Close.
var ErrNotOpen = errors.New("binlog stream is not open")

// Stream reads row changes from a MySQL server acting as a replica.
type Stream struct {
	cfg    config.Binlog
	loader ColumnLoader
	logger *zap.Logger

	syncer   *replication.BinlogSyncer
	streamer *replication.BinlogStreamer
	decoder  *Decoder
}

// NewStream returns an unopened stream. loader may be nil when the server writes full
// row metadata.
func NewStream(cfg config.Binlog, loader ColumnLoader, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{cfg: cfg, loader: loader, logger: logger}
}

func (s *Stream) syncerConfig() replication.BinlogSyncerConfig {
	return replication.BinlogSyncerConfig{
		ServerID:        s.cfg.ServerID,
		Flavor:          s.cfg.Flavor,
		Host:            s.cfg.Host,
		Port:            uint16(s.cfg.Port),
		User:            s.cfg.User,
		Password:        s.cfg.Password,
		Charset:         s.cfg.Charset,
		ParseTime:       true,
		UseDecimal:      true,
		HeartbeatPeriod: s.cfg.HeartbeatPeriod,
		ReadTimeout:     s.cfg.ReadTimeout,
		Logger:          newSyncerLogger(s.logger),
	}
}

// Open starts replicating at from. A zero position starts at the server's current
// master position so only new changes are read. It returns the effective start.
func (s *Stream) Open(ctx context.Context, from position.Position) (position.Position, error) {
	if s.syncer != nil {
		return position.Position{}, errors.New("binlog stream already open")
	}

	if from.IsZero() {
		current, err := MasterPosition(ctx, s.cfg)
		if err != nil {
			return position.Position{}, err
		}
		from = current
	}

	syncer := replication.NewBinlogSyncer(s.syncerConfig())
	streamer, err := syncer.StartSync(mysql.Position{Name: from.File, Pos: from.Pos})
	if err != nil {
		syncer.Close()
		return position.Position{}, fmt.Errorf("start binlog sync at %s: %w", from, err)
	}

	s.syncer = syncer
	s.streamer = streamer
	s.decoder = NewDecoder(from, Filter{Schema: s.cfg.SourceSchema, Tables: s.cfg.Tables}, s.loader)

	s.logger.Info("binlog stream opened",
		zap.String("file", from.File),
		zap.Uint32("pos", from.Pos),
		zap.String("schema", s.cfg.SourceSchema),
		zap.Strings("tables", s.cfg.Tables),
	)
	return from, nil
}

// Next blocks until a change or a commit is available.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	if s.streamer == nil {
		return Event{}, ErrNotOpen
	}
	for {
		raw, err := s.streamer.GetEvent(ctx)
		if err != nil {
			return Event{}, err
		}
		ev, err := s.decoder.Decode(ctx, raw)
		if err != nil {
			return Event{}, err
		}
		if ev != nil {
			return *ev, nil
		}
	}
}

// Position returns the position right after the last event read.
func (s *Stream) Position() position.Position {
	if s.decoder == nil {
		return position.Position{}
	}
	return s.decoder.Position()
}

// Close stops replication. The stream can be opened again afterwards.
func (s *Stream) Close() {
	if s.syncer == nil {
		return
	}
	s.syncer.Close()
	s.syncer = nil
	s.streamer = nil
	s.logger.Info("binlog stream closed")
}

// MasterPosition asks the server for its current binlog coordinates.
func MasterPosition(ctx context.Context, cfg config.Binlog) (position.Position, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	type result struct {
		pos position.Position
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := queryMasterPosition(addr, cfg)
		done <- result{pos: pos, err: err}
	}()

	select {
	case <-ctx.Done():
		return position.Position{}, ctx.Err()
	case r := <-done:
		return r.pos, r.err
	}
}

func queryMasterPosition(addr string, cfg config.Binlog) (position.Position, error) {
	conn, err := client.Connect(addr, cfg.User, cfg.Password, "")
	if err != nil {
		return position.Position{}, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	res, err := conn.Execute("SHOW MASTER STATUS")
	if err != nil {
		// MySQL 8.4 removed SHOW MASTER STATUS.
		res, err = conn.Execute("SHOW BINARY LOG STATUS")
		if err != nil {
			return position.Position{}, fmt.Errorf("read master status: %w", err)
		}
	}
	if res.Resultset == nil || res.RowNumber() == 0 {
		return position.Position{}, errors.New("read master status: binary logging is disabled")
	}

	file, err := res.GetString(0, 0)
	if err != nil {
		return position.Position{}, fmt.Errorf("read master status file: %w", err)
	}
	pos, err := res.GetUint(0, 1)
	if err != nil {
		return position.Position{}, fmt.Errorf("read master status position: %w", err)
	}
	return position.Position{File: file, Pos: uint32(pos)}, nil
}
