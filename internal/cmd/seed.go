package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tms-server/internal/domain/rowstore"
)

type seedOptions struct {
	dsn   string
	sheet string
}

func newSeedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Append CSV rows from stdin to a sheet in the sqlite row store",
		Long: `Reads CSV records (email,password,key,username for the portal sheet) from
standard input and appends them after the last stored row of --sheet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.dsn, "dsn", "data/rows.db", "sqlite database of the row store")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "portal", "sheet to append to")
	return cmd
}

func runSeed(cmd *cobra.Command, opts seedOptions) error {
	if opts.sheet == "" {
		return errors.New("--sheet is required")
	}

	reader := csv.NewReader(cmd.InOrStdin())
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return errors.New("no rows on stdin")
	}

	store, err := rowstore.OpenSQLite(opts.dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	seeder, ok := store.(rowstore.Seeder)
	if !ok {
		return errors.New("row store cannot be seeded")
	}
	if err := seeder.Seed(cmd.Context(), opts.sheet, rows); err != nil {
		return fmt.Errorf("seed %s: %w", opts.sheet, err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rows into %s\n", len(rows), opts.sheet)
	return err
}
