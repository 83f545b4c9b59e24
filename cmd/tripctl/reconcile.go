package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/pkg/civil"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run the Transdata x Globus comparison for a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("data")
		executor, _ := cmd.Flags().GetString("executor")

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if date == "" {
			date = app.Zone.Today()
		}
		day, err := app.Zone.ParseDate(date)
		if err != nil {
			return fmt.Errorf("invalid --data %q: %w", date, err)
		}
		transdata, globus, err := app.Trips.CountByDate(cmd.Context(), civil.StorageDate(day))
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d transdata trips, %d globus trips\n", date, transdata, globus)

		result, err := app.Compare.Run(cmd.Context(), date, models.Editor{Name: executor, Email: executor})
		if err != nil {
			return describe(err)
		}
		if result.NoData {
			fmt.Println(result.Message)
			return nil
		}

		run := result.Run
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "TOTAL\tCOMPATIVEIS\tDIVERGENTES\tHORARIO\tSO TRANSDATA\tSO GLOBUS\tLINHAS\t%\t")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t\n",
			run.Total, run.Compatible, run.Divergent, run.TimeDivergent,
			run.TransdataOnly, run.GlobusOnly, run.LinesAnalyzed, run.CompatibilityPercent.StringFixed(2))
		return w.Flush()
	},
}

func init() {
	reconcileCmd.Flags().StringP("data", "d", "", "Reference date YYYY-MM-DD (default: today in TIMEZONE)")
	reconcileCmd.Flags().String("executor", "tripctl", "Name recorded on the run")
	rootCmd.AddCommand(reconcileCmd)
}
