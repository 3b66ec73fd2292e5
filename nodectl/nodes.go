package main

import (
	"context"
	"fmt"
	"maps"
	"text/template"

	"github.com/gammadia/nodeprovider/nodectl/ui"
	"github.com/gammadia/nodeprovider/provider"
	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// node is what the --template of `nodectl nodes` is executed with.
type node struct {
	ID     string
	IP     string
	Kind   string
	Name   string
	Type   string
	Status string
	Tags   map[string]string
}

func describeNode(ctx context.Context, p provider.NodeProvider, id string) (node, error) {
	tags, err := p.NodeTags(ctx, id)
	if err != nil {
		return node{}, err
	}
	ip, err := p.InternalIP(ctx, id)
	if err != nil {
		return node{}, err
	}

	return node{
		ID:     id,
		IP:     ip,
		Kind:   tags[provider.TagNodeKind],
		Name:   tags[provider.TagNodeName],
		Type:   tags[provider.TagUserNodeType],
		Status: tags[provider.TagNodeStatus],
		Tags:   tags,
	}, nil
}

func newNodesCmd(injector do.Injector) *cobra.Command {
	var filters map[string]string
	var kind, tmpl string

	cmd := &cobra.Command{
		Use:   "nodes CONFIG",
		Short: "List the non-terminated nodes of a cluster",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			var t *template.Template
			if tmpl != "" {
				var err error
				if t, err = template.New("node").Funcs(sprig.TxtFuncMap()).Parse(tmpl); err != nil {
					return fmt.Errorf("failed to parse template: %w", err)
				}
			}

			_, p, err := resolveCluster(injector, args[0])
			if err != nil {
				return err
			}

			tagFilters := maps.Clone(filters)
			if kind != "" {
				tagFilters = lo.Assign(tagFilters, map[string]string{provider.TagNodeKind: kind})
			}

			ids, err := p.NonTerminatedNodes(cmd.Context(), tagFilters)
			if err != nil {
				return fmt.Errorf("failed to list nodes: %w", err)
			}

			nodes := make([]node, 0, len(ids))
			for _, id := range ids {
				n, err := describeNode(cmd.Context(), p, id)
				if err != nil {
					return fmt.Errorf("failed to describe node '%s': %w", id, err)
				}
				nodes = append(nodes, n)
			}

			if t != nil {
				for _, n := range nodes {
					if err := t.Execute(cmd.OutOrStdout(), n); err != nil {
						return fmt.Errorf("failed to execute template: %w", err)
					}
					cmd.Println()
				}
				return nil
			}

			rows := [][]string{{"ID", "IP", "KIND", "TYPE", "STATUS"}}
			for _, n := range nodes {
				rows = append(rows, []string{n.ID, n.IP, n.Kind, n.Type, n.Status})
			}
			for _, line := range ui.Table(rows) {
				cmd.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&filters, "filter", nil, "only list nodes with these tags (key=value)")
	cmd.Flags().StringVar(&kind, "kind", "", "only list nodes of this kind (head, worker)")
	cmd.Flags().StringVar(&tmpl, "template", "", "Go template used to print each node")
	return cmd
}
