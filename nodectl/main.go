package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gammadia/nodeprovider/nodectl/flags"
	"github.com/gammadia/nodeprovider/nodectl/log"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

func newNodectlCmd(injector do.Injector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodectl",
		Short: "nodectl resolves the node provider of a cluster config and manages its nodes.",

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(cmd.ErrOrStderr())
		},

		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(flags.Metrics) {
				return printMetrics(cmd.ErrOrStderr(), injector)
			}
			return nil
		},
	}

	flags.Init(cmd.PersistentFlags())

	cmd.AddCommand(newProvidersCmd(injector))
	cmd.AddCommand(newDefaultsCmd(injector))
	cmd.AddCommand(newConfigCmd(injector))
	cmd.AddCommand(newNodesCmd(injector))
	cmd.AddCommand(newCreateCmd(injector))
	cmd.AddCommand(newTerminateCmd(injector))
	cmd.AddCommand(newSshCmd(injector))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newNodectlCmd(newInjector())
	cmd.SetOut(os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}
