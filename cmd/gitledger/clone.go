// cmd/gitledger/clone.go
package main

import (
	"errors"

	"github.com/spf13/cobra"

	"gitledger/internal/model"
)

func newCloneCmd() *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "clone URL...",
		Short: "Clone or update repositories under CODE_DIR and sync them",
		Long: `Clone checks out each URL into CODE_DIR/<host>/<owner>/<name>, or pulls it
when the checkout already exists, and then syncs its history.

Examples:
  gitledger clone https://github.com/kospex/kospex.git`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			sess, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()
			if sess.cfg.CodeDir == "" {
				return errors.New("CODE_DIR must be set to clone repositories")
			}

			results := make([]model.SyncResult, 0, len(args))
			for _, url := range args {
				results = append(results, sess.syncer.CloneAndSync(cmd.Context(), url, opts))
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Only sync the most recent N commits")
	cmd.Flags().StringVar(&flags.from, "from", "", "Only sync commits after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&flags.to, "to", "", "Only sync commits before this date, used together with --from")
	return cmd
}
