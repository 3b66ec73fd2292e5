package main

import (
	"errors"
	"fmt"

	"github.com/gammadia/nodeprovider/nodectl/ui"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

func newTerminateCmd(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate CONFIG NODE...",
		Short: "Terminate nodes of a cluster",
		Args:  cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := resolveCluster(injector, args[0])
			if err != nil {
				return err
			}

			var errs []error
			for _, id := range args[1:] {
				spinner := ui.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Terminating node '%s'", id))
				if err := p.TerminateNode(cmd.Context(), id); err != nil {
					spinner.Fail(fmt.Sprintf("Failed to terminate node '%s': %v", id, err))
					errs = append(errs, fmt.Errorf("failed to terminate node '%s': %w", id, err))
					continue
				}
				spinner.Success(fmt.Sprintf("Terminated node '%s'", id))
			}
			return errors.Join(errs...)
		},
	}
}
