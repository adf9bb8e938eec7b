// cmd/gitledger/resolve.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitledger/internal/remote"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve URL...",
		Short: "Print the repository key of remote URLs",
		Long: `Resolve derives the canonical host, owner and name of each remote URL
and prints the repository key under which its history is stored.

Examples:
  gitledger resolve git@github.com:kospex/kospex.git
  gitledger resolve https://dev.azure.com/contoso/webapp/_git/frontend`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, url := range args {
				res, err := remote.Resolve(url)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%s (%s)\n", url, res.Identity.Key(), res.Matcher, res.Confidence)
			}
			return nil
		},
	}
}
