package main

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trezcool/pmajay/core/user"
)

var tierColors = map[user.Tier]*color.Color{
	user.TierNational: color.New(color.FgMagenta),
	user.TierState:    color.New(color.FgBlue),
	user.TierDistrict: color.New(color.FgCyan),
	user.TierVillage:  color.New(color.FgGreen),
}

func (cli *commandLine) rolesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List the roles, their tier and permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, ri := range user.Roles() {
				tier := ri.Tier.String()
				if c, ok := tierColors[ri.Tier]; ok {
					tier = c.Sprint(tier)
				}
				cli.printf("%-28s %-28s %-10s %3d\n", ri.Value, ri.Name, tier, ri.Priority)
				if verbose {
					cli.printf("    %s\n", strings.Join(ri.Permissions, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list the permissions")
	return cmd
}
