package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"demand_forecast/internal/ingest"
	"demand_forecast/internal/model"
)

var forcePull bool

func init() {
	pullCmd.Flags().BoolVar(&forcePull, "force", false, "Discard pending edits")

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(showCmd)
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the working table with the remote sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		if n := w.session.Diff().Len(); n > 0 && !forcePull {
			return fmt.Errorf("%d pending edits would be discarded; push them or pass --force", n)
		}

		res, err := w.session.Pull(cmd.Context())
		if err != nil {
			return err
		}
		for _, warning := range res.Warnings {
			fmt.Fprintln(os.Stderr, "warning:", warning)
		}
		fmt.Printf("Pulled %d rows\n", res.Rows)
		return w.save()
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "List cells edited since the last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		diff := w.session.Diff()
		if diff.Len() == 0 {
			fmt.Println("No pending edits")
			return nil
		}
		for _, c := range diff.Cells() {
			fmt.Printf("%s  %-14s %s\n", c.Key, c.Column, diff[c])
		}
		fmt.Printf("%d pending edits\n", diff.Len())
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit DATE COLUMN VALUE",
	Short: "Change one cell of the working table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		if err := w.session.Edit(args[0], args[1], args[2]); err != nil {
			return err
		}
		return w.save()
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert DATE",
	Short: "Add a blank row for DATE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := time.Parse(model.DateLayout, args[0])
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		rec, err := w.session.Insert(date)
		if err != nil {
			return err
		}
		fmt.Printf("Inserted %s (%s)\n", rec.Key(), rec.DayOfWeek)
		return w.save()
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Write pending edits back to the remote sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		res, err := w.session.Push(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %d cells in %d ranges\n", res.Cells, res.Ranges)
		return w.save()
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the working table as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		layout := w.session.Sync().Layout()
		if layout == nil {
			layout = ingest.DefaultLayout()
		}
		if st := w.session.Status(); st.Rows == 0 {
			return fmt.Errorf("working table is empty; run 'forecast pull' first")
		}
		return ingest.WriteCSV(os.Stdout, ingest.Encode(layout, w.session.Store().RecordsByPosition()))
	},
}
