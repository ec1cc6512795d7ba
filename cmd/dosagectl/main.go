package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"dosage-management/internal/config"
	"dosage-management/internal/db"
	"dosage-management/internal/excel"
	"dosage-management/internal/export"
	"dosage-management/internal/ingest"
	"dosage-management/internal/logger"
	"dosage-management/internal/mapping"
	"dosage-management/internal/model"
	"dosage-management/internal/schema"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "dosagectl",
		Short: "Operate dosage workbook imports and result exports from the command line",
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level from the config file")

	rootCmd.AddCommand(
		newImportCmd(&logLevel),
		newExportCmd(&logLevel),
		newColumnsCmd(&logLevel),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(logLevel string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, logger.New(cfg.Logging.Level, "console"), nil
}

func newImportCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import [workbook.xlsx]",
		Short: "Import a workbook into the configured store",
		Long: `Import every MTH, MAT and DAILYDOSAGE sheet of a workbook, the same way
an upload through the API does, and print the tables that were loaded.

Example: dosagectl import ./dosage_1231.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*logLevel)
			if err != nil {
				return err
			}

			database, err := db.NewConnection(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			store, err := db.NewStore(database, cfg, log)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := ingest.NewImporter(cfg.Import, store, log).ImportWorkbook(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newExportCmd(logLevel *string) *cobra.Command {
	var dataType, market, from string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export calculated results into a zip of per-market workbooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*logLevel)
			if err != nil {
				return err
			}

			calculatedFrom := time.Now().Add(-cfg.Workers.Export.Lookback)
			if from != "" {
				if calculatedFrom, err = time.ParseInLocation("2006-01-02", from, time.Local); err != nil {
					return fmt.Errorf("invalid --from (use YYYY-MM-DD): %w", err)
				}
			}

			database, err := db.NewConnection(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			exporter := export.NewExporter(cfg.Export, db.NewRepository(database), log)
			bundle, err := exporter.Export(cmd.Context(), model.ExportRequest{
				DataType:       dataType,
				Market:         market,
				CalculatedFrom: calculatedFrom,
			})
			if err != nil {
				return err
			}

			fmt.Println(bundle)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataType, "data-type", "MTH", "Result data type to export")
	cmd.Flags().StringVar(&market, "market", export.AllMarkets, "Market to export, or 'all'")
	cmd.Flags().StringVar(&from, "from", "", "Only results calculated on or after this date (YYYY-MM-DD)")

	return cmd
}

func newColumnsCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "columns [workbook.xlsx]",
		Short: "Print the table layout each period sheet would be loaded into",
		Long: `Resolve the columns of every MTH and MAT sheet against the column mapping
without touching the store. Useful to check a mapping change before an import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*logLevel)
			if err != nil {
				return err
			}
			return printColumns(cfg, args[0], log)
		},
	}
}

func printColumns(cfg *config.Config, path string, log zerolog.Logger) error {
	cols, err := mapping.Load(cfg.Import.MappingPath)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	wb, err := excel.Open(f)
	if err != nil {
		return err
	}

	resolver := schema.NewResolver(cols, log)
	for _, sheet := range wb.Sheets() {
		kind := excel.Classify(sheet.Name())
		if !kind.IsPeriod() {
			continue
		}

		s, err := resolver.Resolve(kind.String(), sheet)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.Name(), err)
		}

		fmt.Printf("%s (%s)\n", sheet.Name(), kind)
		for _, field := range s.Columns() {
			typ := field.SQLType
			if typ == "" {
				typ = field.Kind.String()
			}
			fmt.Printf("  %-40s %s\n", field.Name, typ)
		}
		fmt.Println(strings.Repeat("-", 60))
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
