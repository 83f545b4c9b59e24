package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/trip-control-api/internal/bootstrap"
	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/source"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the trips of a date from a JSON export file",
	Long: `Reads a JSON file holding an array of trips, either at the top level or under
--path, and replaces the stored trips of that source and date. Field names follow
the upstream APIs (idOrigem, linha, servico, sentido, horaSaida, ...).`,
}

var importTransdataCmd = &cobra.Command{
	Use:   "transdata",
	Short: "Import Transdata trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, func(app *bootstrap.App, date string, body []byte, path string) (*dto.ImportResult, error) {
			rows, err := source.TransdataRecords(body, path)
			if err != nil {
				return nil, err
			}
			return app.Sync.ImportTransdata(cmd.Context(), date, rows)
		})
	},
}

var importGlobusCmd = &cobra.Command{
	Use:   "globus",
	Short: "Import Globus trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, func(app *bootstrap.App, date string, body []byte, path string) (*dto.ImportResult, error) {
			rows, err := source.GlobusRecords(body, path)
			if err != nil {
				return nil, err
			}
			return app.Sync.ImportGlobus(cmd.Context(), date, rows)
		})
	},
}

type importFunc func(app *bootstrap.App, date string, body []byte, path string) (*dto.ImportResult, error)

func runImport(cmd *cobra.Command, load importFunc) error {
	date, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("file")
	path, _ := cmd.Flags().GetString("path")

	body, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	app, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := load(app, date, body, path)
	if err != nil {
		return describe(err)
	}
	fmt.Printf("%s %s: %d trips stored\n", result.Source, result.ReferenceDate, result.Inserted)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{importTransdataCmd, importGlobusCmd} {
		c.Flags().StringP("data", "d", "", "Reference date YYYY-MM-DD")
		c.Flags().StringP("file", "f", "", "JSON file to read")
		c.Flags().String("path", "", "gjson path of the trips array (empty for a top-level array)")
		_ = c.MarkFlagRequired("data")
		_ = c.MarkFlagRequired("file")
		importCmd.AddCommand(c)
	}
	rootCmd.AddCommand(importCmd)
}
