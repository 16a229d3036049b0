package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the verification account credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		credits, err := initVerifier().CheckCredits(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "check credits")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(credits)
	},
}

func init() {
	rootCmd.AddCommand(creditsCmd)
}
