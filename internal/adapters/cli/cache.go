package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-sorter/internal/core/usecase"
)

func newCacheCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the summary, embedding and naming caches",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "reset [table...]",
		Short:     "Clear cache tables (all when none are given)",
		Long:      "Tables: " + strings.Join(usecase.CacheTables, ", "),
		ValidArgs: usecase.CacheTables,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caches, err := deps.Caches()
			if err != nil {
				return err
			}
			if err := caches.Reset(cmd.Context(), args...); err != nil {
				return fmt.Errorf("cache reset failed: %w", err)
			}
			cleared := args
			if len(cleared) == 0 {
				cleared = usecase.CacheTables
			}
			cmd.Printf("Cleared %s\n", strings.Join(cleared, ", "))
			return nil
		},
	})
	return cmd
}
