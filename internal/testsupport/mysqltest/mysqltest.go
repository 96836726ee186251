//go:build integration

// Package mysqltest starts a throwaway MySQL server for integration tests.
package mysqltest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/database"
	"github.com/sultanlodh/Stream/internal/migration"
)

const (
	image    = "mysql:8.0.36"
	schema   = "inventory"
	user     = "root"
	password = "debezium"
)

// Server is a running MySQL container with the migrations applied.
type Server struct {
	Container *tcmysql.MySQLContainer
	Conns     *database.Connections
	DSN       string
	Host      string
	Port      int
}

// Start runs MySQL with row-based binlog enabled, applies the migrations, and registers
// cleanup on t.
func Start(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, image,
		tcmysql.WithDatabase(schema),
		tcmysql.WithUsername(user),
		tcmysql.WithPassword(password),
		testcontainers.WithCmdArgs(
			"--server-id=1",
			"--log-bin=mysql-bin",
			"--binlog-format=ROW",
			"--binlog-row-metadata=FULL",
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate mysql container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	conns, err := database.Open(config.Database{
		Driver:          "mysql",
		WriterDSN:       dsn,
		ReaderDSN:       dsn,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	require.Eventually(t, func() bool {
		return conns.Ping(ctx) == nil
	}, 30*time.Second, 500*time.Millisecond)

	migrator, err := migration.New(conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))

	return &Server{
		Container: container,
		Conns:     conns,
		DSN:       dsn,
		Host:      host,
		Port:      mapped.Int(),
	}
}

// Binlog returns replication settings pointing at the container.
func (s *Server) Binlog(serverID uint32) config.Binlog {
	return config.Binlog{
		Host:            s.Host,
		Port:            s.Port,
		User:            user,
		Password:        password,
		Charset:         "utf8mb4",
		Flavor:          "mysql",
		ServerID:        serverID,
		SourceSchema:    schema,
		Tables:          []string{"table1", "table2"},
		HeartbeatPeriod: 5 * time.Second,
		ReadTimeout:     30 * time.Second,
	}
}
