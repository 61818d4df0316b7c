package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tablekeep/reservation-engine/internal/config"
	"github.com/tablekeep/reservation-engine/internal/db"
	"github.com/tablekeep/reservation-engine/internal/lock/memlock"
	"github.com/tablekeep/reservation-engine/internal/reservation"
	"github.com/tablekeep/reservation-engine/internal/store"
	"github.com/tablekeep/reservation-engine/internal/store/postgres"
)

// newExpireSweepCmd is the admin trigger to force a sweep outside the
// serve loop's ticker.
func newExpireSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-sweep",
		Short: "Expire PENDING holds past their TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			var st store.Store = postgres.New(d)
			svc := reservation.New(st, memlock.New())
			count, err := svc.ExpirePending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "expired %d pending reservations\n", count)
			return nil
		},
	}
}
