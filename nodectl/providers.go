package main

import (
	"github.com/fatih/color"
	"github.com/gammadia/nodeprovider/nodectl/ui"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

func newProvidersCmd(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the node provider types",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolver(injector)
			if err != nil {
				return err
			}
			catalog := r.Catalog()

			rows := [][]string{}
			for _, typ := range catalog.Types() {
				rows = append(rows, []string{typ, catalog.PrettyName(typ)})
			}
			for _, line := range ui.Table(rows) {
				cmd.Println(line)
			}

			plugins, err := do.Invoke[*provider.Plugins](injector)
			if err != nil {
				return err
			}
			for _, path := range plugins.Paths() {
				cmd.Printf("%s %s\n", color.HiBlackString("plugin"), color.HiCyanString(path))
			}
			return nil
		},
	}
}
