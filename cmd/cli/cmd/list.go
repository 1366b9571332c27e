package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
	"github.com/Krayangel/ARSW-LAB03/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available simulations",
	Long:  `List all available simulations with their descriptions`,
	RunE:  listSimulations,
}

func init() {
	listCmd.Flags().BoolP("verbose", "v", false, "also list each simulation's parameters")
}

func listSimulations(cmd *cobra.Command, _ []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(simInfos) == 0 {
		_, _ = fmt.Fprintln(out, "No simulations found")
		return nil
	}

	table := logger.NewTable("NAME", "VERSION", "CATEGORY", "DESCRIPTION")
	for _, info := range simInfos {
		table.AddRow(info.Name, info.Config.Version, info.Config.Category, info.Config.Description)
	}
	table.Fprint(out)

	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		return nil
	}

	for _, info := range simInfos {
		if len(info.Config.Parameters) == 0 {
			continue
		}
		_, _ = fmt.Fprintln(out)
		logger.FprintSection(out, info.Name+" parameters")
		params := logger.NewTable("NAME", "TYPE", "DEFAULT", "DESCRIPTION")
		for _, p := range info.Config.Parameters {
			def := ""
			if p.Default != nil {
				def = fmt.Sprint(p.Default)
			}
			params.AddRow(p.Name, p.Type, def, p.Description)
		}
		params.Fprint(out)
	}
	return nil
}
