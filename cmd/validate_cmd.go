package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the customer history for SCD2 violations",
	Long: `Read dim_customers_scd2 and verify that every key has exactly one current
row, every row has a start_date, closed rows carry an end_date and current
rows do not. The table is never modified. Exits non-zero on any violation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}

		result, err := e.ValidateHistory()
		if err != nil {
			return err
		}

		if validateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			fmt.Printf("History: %d rows, %d keys\n\n", result.Rows, result.Keys)
			for _, c := range result.Checks {
				mark := "PASS"
				if !c.Passed {
					mark = "FAIL"
				}
				fmt.Printf("  [%s] %s\n", mark, c.Name)
				for _, v := range c.Violations {
					if v.Row > 0 {
						fmt.Printf("         key %s row %d: %s\n", v.Key, v.Row, v.Detail)
					} else {
						fmt.Printf("         key %s: %s\n", v.Key, v.Detail)
					}
				}
			}
			fmt.Printf("\nOverall: %s\n", result.Status)
		}

		if result.Status != "PASS" {
			return fmt.Errorf("history validation failed")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(validateCmd)
}
