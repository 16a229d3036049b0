package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	verifyFirst  string
	verifyLast   string
	verifyDomain string
	verifyEmail  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify candidate emails for a person, or one specific address",
	Long: "Without --email, generates the full candidate pool for the person and " +
		"verifies it chunk by chunk, reporting every valid address found. " +
		"With --email, verifies that single address directly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if verifyEmail != "" {
			result, err := initVerifier().VerifyEmail(ctx, verifyEmail)
			if err != nil {
				return eris.Wrap(err, "verify email")
			}
			return enc.Encode(map[string]any{
				"email":         verifyEmail,
				"mapped_status": result.MappedStatus,
				"raw":           result.Raw,
			})
		}

		if verifyFirst == "" || verifyLast == "" || verifyDomain == "" {
			return eris.New("either --email or all of --first, --last, --domain are required")
		}

		driver, err := initDriver()
		if err != nil {
			return err
		}

		report, err := driver.VerifyEmails(ctx, uuid.New().String(), verifyFirst, verifyLast, verifyDomain)
		if err != nil {
			return eris.Wrap(err, "verify")
		}
		return enc.Encode(report)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFirst, "first", "", "first name")
	verifyCmd.Flags().StringVar(&verifyLast, "last", "", "last name")
	verifyCmd.Flags().StringVar(&verifyDomain, "domain", "", "company domain")
	verifyCmd.Flags().StringVar(&verifyEmail, "email", "", "verify this single address instead")
	rootCmd.AddCommand(verifyCmd)
}
