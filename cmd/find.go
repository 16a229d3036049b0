package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/model"
)

var (
	findFirst  string
	findLast   string
	findDomain string
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the first valid email address for a person",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		driver, err := initDriver()
		if err != nil {
			return err
		}

		prospect := model.Prospect{
			FirstName: findFirst,
			LastName:  findLast,
			Domain:    findDomain,
		}
		run, err := st.CreateRun(ctx, prospect)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusVerifying); err != nil {
			return eris.Wrap(err, "update run status")
		}

		result, err := driver.VerifySingle(ctx, run.ID, findFirst, findLast, findDomain)
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID, err); failErr != nil {
				zap.L().Warn("failed to record run failure", zap.Error(failErr))
			}
			return eris.Wrap(err, "find")
		}

		if err := st.CompleteRun(ctx, run.ID, &model.RunResult{
			ValidEmails: validEmails(result.ValidEmail),
			TotalValid:  len(validEmails(result.ValidEmail)),
		}); err != nil {
			zap.L().Warn("failed to record run result", zap.Error(err))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func validEmails(email string) []string {
	if email == "" {
		return nil
	}
	return []string{email}
}

func init() {
	findCmd.Flags().StringVar(&findFirst, "first", "", "first name (required)")
	findCmd.Flags().StringVar(&findLast, "last", "", "last name (required)")
	findCmd.Flags().StringVar(&findDomain, "domain", "", "company domain (required)")
	_ = findCmd.MarkFlagRequired("first")
	_ = findCmd.MarkFlagRequired("last")
	_ = findCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(findCmd)
}
