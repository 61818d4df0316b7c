package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/tablekeep/reservation-engine/internal/availability"
	"github.com/tablekeep/reservation-engine/internal/config"
	"github.com/tablekeep/reservation-engine/internal/db"
	"github.com/tablekeep/reservation-engine/internal/httpapi"
	"github.com/tablekeep/reservation-engine/internal/idempotency"
	"github.com/tablekeep/reservation-engine/internal/lock"
	"github.com/tablekeep/reservation-engine/internal/lock/memlock"
	"github.com/tablekeep/reservation-engine/internal/lock/redislock"
	"github.com/tablekeep/reservation-engine/internal/migrate"
	"github.com/tablekeep/reservation-engine/internal/reservation"
	"github.com/tablekeep/reservation-engine/internal/store"
	"github.com/tablekeep/reservation-engine/internal/store/memstore"
	"github.com/tablekeep/reservation-engine/internal/store/postgres"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation-engine HTTP API and background expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			var st store.Store
			if cfg.StoreDriver == "postgres" {
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := d.Ping(ctx); err != nil {
					return fmt.Errorf("db ping: %w", err)
				}
				if migrateUp {
					if err := migrate.Up(ctx, d); err != nil {
						return err
					}
				}
				st = postgres.New(d)
			} else {
				st = memstore.New()
			}

			var lm lock.Manager
			if cfg.LockDriver == "redis" {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis ping: %w", err)
				}
				lm = redislock.New(rdb)
			} else {
				lm = memlock.New()
			}

			resSvc := reservation.New(st, lm)
			availSvc := availability.New(st)
			idemLayer := idempotency.New(st)

			go runExpireSweepLoop(ctx, resSvc, cfg.ExpireSweepInterval, logger)

			srv := httpapi.New(resSvc, availSvc, idemLayer, st, logger)
			logger.Info("listening", "addr", cfg.HTTPAddr)
			return httpapi.Start(ctx, cfg.HTTPAddr, srv.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (postgres store only)")
	return cmd
}

// runExpireSweepLoop polls for expired pending holds on a ticker until
// ctx is cancelled.
func runExpireSweepLoop(ctx context.Context, svc *reservation.Service, interval time.Duration, logger *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.ExpirePending(ctx)
			if err != nil {
				logger.Warn("expire sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired pending holds", "count", n)
			}
		}
	}
}
