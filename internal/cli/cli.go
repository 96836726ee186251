package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sultanlodh/Stream/internal/app"
	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/migration"
	"github.com/sultanlodh/Stream/internal/position"
	"github.com/sultanlodh/Stream/internal/processor"
	"github.com/sultanlodh/Stream/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root stream CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "stream",
		Short:         "MySQL binlog to order pivot projection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCmd(),
		newProcessCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newBootstrapCmd(),
		newCheckpointCmd(),
	)

	return root
}

// Execute runs the stream CLI until the command finishes or a termination signal arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the processor with HTTP and gRPC probes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Module)
		},
	}
}

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Run only the binlog processor, regardless of PROCESSOR_ENABLED",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sup *processor.Supervisor
			opts := fx.Options(
				app.Core,
				fx.Provide(processor.NewFromConfig, processor.NewSupervisorFromConfig),
				fx.Populate(&sup),
			)
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := sup.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
				defer cancel()
				return sup.Stop(stopCtx)
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume the pivot change feed and keep the cache warm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(cmd *cobra.Command, fn func(context.Context, *migration.Migrator) error) error {
		var mig *migration.Migrator
		opts := fx.Options(app.Base, migration.Module, fx.Populate(&mig))
		return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
			return fn(ctx, mig)
		})
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				return mig.Status(ctx)
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demonstration rows into table1 and table2",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Base, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.All(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Prepare the source server for replication",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "replica-user",
		Short: "Create the replication user from REPLICA_USER / REPLICA_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				seed *seeder.Seeder
				cfg  config.Config
			)
			opts := fx.Options(app.Base, seeder.Module, fx.Populate(&seed, &cfg))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.ReplicaUser(ctx, cfg.Replica); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replication user %q ready\n", cfg.Replica.User)
				return nil
			})
		},
	})
	return cmd
}

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset the saved binlog position",
	}

	withStore := func(cmd *cobra.Command, fn func(context.Context, position.Store) error) error {
		var store position.Store
		opts := fx.Options(app.Base, position.Module, fx.Populate(&store))
		return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
			return fn(ctx, store)
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the saved position as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, store position.Store) error {
					pos, found, err := store.Load(ctx)
					if err != nil {
						return err
					}
					if !found {
						fmt.Fprintln(cmd.OutOrStdout(), "no checkpoint saved")
						return nil
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(pos)
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget the saved position; the next run starts at the current master position",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, store position.Store) error {
					if err := store.Reset(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "checkpoint reset")
					return nil
				})
			},
		},
	)
	return cmd
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
