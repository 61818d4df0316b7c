package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tablekeep/reservation-engine/internal/config"
	"github.com/tablekeep/reservation-engine/internal/db"
	"github.com/tablekeep/reservation-engine/internal/model"
)

// newSeedCmd inserts a demo restaurant/sector/tables for local testing.
func newSeedCmd() *cobra.Command {
	var restaurantID, sectorID string

	c := &cobra.Command{
		Use:   "seed",
		Short: "Insert a demo restaurant, sector and two tables for local testing",
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

			rest := model.Restaurant{
				ID:       restaurantID,
				Timezone: "America/Argentina/Buenos_Aires",
				Shifts: []model.Shift{
					{Start: "12:00", End: "16:00"},
					{Start: "20:00", End: "23:45"},
				},
				DefaultDurationMin: 90,
				DurationRules: []model.DurationRule{
					{MaxPartySize: 2, Minutes: 75},
					{MaxPartySize: 4, Minutes: 90},
					{MaxPartySize: 8, Minutes: 120},
					{MaxPartySize: 999, Minutes: 150},
				},
				LargeGroupThreshold: 8,
				PendingHoldTTLMin:   30,
			}
			shiftsJSON, _ := json.Marshal(rest.Shifts)
			rulesJSON, _ := json.Marshal(rest.DurationRules)

			if err := d.Exec(ctx, `
				INSERT INTO restaurants (id, timezone, shifts, default_duration_minutes, duration_rules, large_group_threshold, pending_hold_ttl_minutes)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				ON CONFLICT (id) DO NOTHING`,
				rest.ID, rest.Timezone, shiftsJSON, rest.DefaultDurationMin, rulesJSON, rest.LargeGroupThreshold, rest.PendingHoldTTLMin); err != nil {
				return err
			}
			if err := d.Exec(ctx, `INSERT INTO sectors (id, restaurant_id, name) VALUES ($1,$2,$3) ON CONFLICT (id) DO NOTHING`,
				sectorID, restaurantID, "Main Hall"); err != nil {
				return err
			}
			if err := d.Exec(ctx, `INSERT INTO tables (id, sector_id, min_size, max_size) VALUES ($1,$2,2,4) ON CONFLICT (id) DO NOTHING`,
				sectorID+"-t1", sectorID); err != nil {
				return err
			}
			if err := d.Exec(ctx, `INSERT INTO tables (id, sector_id, min_size, max_size) VALUES ($1,$2,2,4) ON CONFLICT (id) DO NOTHING`,
				sectorID+"-t2", sectorID); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "seeded restaurant=%s sector=%s tables=%s-t1,%s-t2\n", restaurantID, sectorID, sectorID, sectorID)
			return nil
		},
	}

	c.Flags().StringVar(&restaurantID, "restaurant-id", "demo-restaurant", "restaurant id to seed")
	c.Flags().StringVar(&sectorID, "sector-id", "demo-sector", "sector id to seed")
	return c
}
