package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listScenariosCmd = &cobra.Command{
	Use:   "list-scenarios",
	Short: "List available sleep scenarios",
	Long:  `Lists the built-in sleep scenarios, plus any found in ./scenarios, with their descriptions.`,
	RunE:  runListScenarios,
}

func runListScenarios(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	names := registry.List()
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No scenarios found")
		return nil
	}

	fmt.Fprintln(out, "Available scenarios:")
	fmt.Fprintln(out)
	for _, name := range names {
		scen, err := registry.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-20s %-10s %s\n", name, scen.Duration, scen.Description)
	}
	fmt.Fprintln(out)

	return nil
}
