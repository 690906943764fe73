package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "snore",
	Short: "SNORE - two-node sleep monitor",
	Long: `SNORE runs the two nodes of a sleep monitor.

The wristwatch samples motion, sound and a pulse pin and sends three
values per cycle over a radio. The stationary node stages what it
receives and appends one row per store to a per-day CSV log.

Both nodes can run on real radios (UDP or MQTT) or together in one
process with simulated sensors.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&globalOpts.ConfigPath, "config", "c", "", "YAML config file")
	flags.StringVar(&globalOpts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.StringVar(&globalOpts.LogFormat, "log-format", "", "Log format: console|json")
	flags.BoolVarP(&globalOpts.Quiet, "quiet", "q", false, "Suppress banners and row output")

	rootCmd.AddCommand(stationaryCmd)
	rootCmd.AddCommand(wristwatchCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(listScenariosCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}
