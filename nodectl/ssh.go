package main

import (
	"fmt"

	"github.com/alessio/shellescape"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// sshCommand returns the command line connecting to ip with the auth
// section of cluster.
func sshCommand(cluster provider.ClusterConfig, ip string, command []string) ([]string, error) {
	auth, _ := cluster[provider.KeyAuth].(map[string]any)
	user, _ := auth["ssh_user"].(string)
	if user == "" {
		return nil, fmt.Errorf("cluster config has no 'auth.ssh_user'")
	}

	args := []string{"ssh", "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null"}
	if key, _ := auth["ssh_private_key"].(string); key != "" {
		args = append(args, "-i", key)
	}
	args = append(args, user+"@"+ip)
	return append(args, command...), nil
}

func newSshCmd(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "ssh CONFIG NODE [-- COMMAND...]",
		Short: "Print the ssh command line to connect to a node",
		Args:  cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, p, err := resolveCluster(injector, args[0])
			if err != nil {
				return err
			}

			ip, err := p.InternalIP(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			command, err := sshCommand(cluster, ip, args[2:])
			if err != nil {
				return err
			}
			cmd.Println(shellescape.QuoteCommand(command))
			return nil
		},
	}
}
