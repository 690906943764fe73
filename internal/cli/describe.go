package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/snore/snore-cli/internal/scenario"
)

var describeCmd = &cobra.Command{
	Use:   "describe <scenario>",
	Short: "Describe a sleep scenario in detail",
	Long:  `Shows the signals and phases of a sleep scenario.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	scen, err := registry.Get(args[0])
	if err != nil {
		return fmt.Errorf("scenario not found: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario: %s\n", scen.Name)
	fmt.Fprintf(out, "Description: %s\n", scen.Description)
	fmt.Fprintf(out, "Duration: %s\n\n", scen.Duration)

	fmt.Fprintln(out, "Signals:")
	for _, name := range sortedKeys(scen.Signals) {
		fmt.Fprintf(out, "  %-6s %s\n", name, describeSignal(scen.Signals[name]))
	}

	if len(scen.Phases) > 0 {
		fmt.Fprintln(out, "\nPhases:")
		for i, phase := range scen.Phases {
			fmt.Fprintf(out, "  %d. %s (duration: %s)\n", i+1, phase.Name, phase.Duration)
			for _, signal := range sortedKeys(phase.Overrides) {
				fmt.Fprintf(out, "       %-6s %s\n", signal, describeSignal(phase.Overrides[signal]))
			}
		}
	}

	fmt.Fprintln(out)
	return nil
}

func describeSignal(cfg *scenario.SignalConfig) string {
	if cfg == nil {
		return ""
	}
	s := ""
	if len(cfg.Vector) > 0 {
		s += fmt.Sprintf(" vector=%v", cfg.Vector)
	}
	if cfg.Baseline != 0 {
		s += fmt.Sprintf(" baseline=%g", cfg.Baseline)
	}
	if cfg.Noise != 0 {
		s += fmt.Sprintf(" noise=%g", cfg.Noise)
	}
	if cfg.Add != 0 {
		s += fmt.Sprintf(" add=%g", cfg.Add)
	}
	if cfg.Multiply != 0 {
		s += fmt.Sprintf(" multiply=%g", cfg.Multiply)
	}
	if s == "" {
		return ""
	}
	return s[1:]
}

func sortedKeys(m map[string]*scenario.SignalConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
