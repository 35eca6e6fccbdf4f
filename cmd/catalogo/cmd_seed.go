package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/electrohogar/catalogo/config"
	"github.com/electrohogar/catalogo/database/seeders"
	"github.com/electrohogar/catalogo/internal/catalog"
)

// catalogo seed [n] — insert random products into the store.
var seedCmd = &cobra.Command{
	Use:   "seed [n]",
	Short: "Insert random products into the catalog store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			seeders.ProductCount = n
		}

		if err := config.Load(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		gw, err := catalog.NewMongoGateway(ctx, config.MongoURI(), config.MongoDB(), config.MongoCollection())
		if err != nil {
			return err
		}
		defer gw.Close(context.Background())

		fmt.Println("Seeding catalog…")
		return seeders.RunAll(ctx, gw)
	},
}
