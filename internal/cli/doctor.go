package cli

import (
	"fmt"
	"net"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snore/snore-cli/internal/config"
	"github.com/snore/snore-cli/internal/daylog"
	"github.com/snore/snore-cli/internal/storage"
	"github.com/snore/snore-cli/internal/transport"
)

var doctorDir string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment and print connection info",
	Long:  `Validates the configuration, checks the storage directory and port availability, and shows the next day log.`,
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorDir, "dir", "", "Storage directory to check")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "SNORE environment check")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Go Version:        %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	cfg, err := loadConfig(cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("dir") {
			cfg.Storage.Dir = doctorDir
		}
	})
	if err != nil {
		fmt.Fprintf(out, "[FAIL] %v\n", err)
		return err
	}
	fmt.Fprintln(out, "[ OK ] configuration is valid")

	failures := 0
	check := func(ok bool, pass, fail string) {
		if ok {
			fmt.Fprintf(out, "[ OK ] %s\n", pass)
			return
		}
		failures++
		fmt.Fprintf(out, "[FAIL] %s\n", fail)
	}

	dir, err := storage.NewDir(cfg.Storage.Dir)
	check(err == nil, "storage directory "+cfg.Storage.Dir, fmt.Sprintf("storage directory: %v", err))
	if err == nil {
		err := checkWritable(dir)
		check(err == nil, "storage directory is writable", fmt.Sprintf("storage directory not writable: %v", err))

		day, err := daylog.NewResolver(dir).Resolve()
		check(err == nil, "next day log: "+daylog.FileName(day), fmt.Sprintf("cannot resolve day: %v", err))
	}

	if registry, err := loadRegistry(); err == nil {
		check(true, fmt.Sprintf("scenarios: %v", registry.List()), "")
	} else {
		check(false, "", fmt.Sprintf("scenarios: %v", err))
	}

	if cfg.Radio.Transport == "udp" {
		check(isUDPAvailable(cfg.Radio.Listen),
			"udp radio address "+cfg.Radio.Listen+" is available",
			"udp radio address "+cfg.Radio.Listen+" is in use")
	}
	if cfg.Radio.Transport == "mqtt" {
		fmt.Fprintf(out, "[INFO] mqtt broker %s, topic %s\n", cfg.Radio.Broker, transport.Topic(cfg.Radio.Group))
	}

	feedAddr := net.JoinHostPort(cfg.Feed.Host, strconv.Itoa(cfg.Feed.Port))
	check(isPortAvailable(feedAddr), "feed port "+feedAddr+" is available", "feed port "+feedAddr+" is in use")

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Live row feed (with --feed):")
	fmt.Fprintf(out, "  conn, _, err := websocket.DefaultDialer.Dial(\"ws://%s/rows\", nil)\n", feedAddr)
	fmt.Fprintln(out)

	if failures > 0 {
		return fmt.Errorf("%d checks failed", failures)
	}
	fmt.Fprintln(out, "Environment check complete")
	return nil
}

const doctorProbe = ".snore-doctor"

func checkWritable(dir *storage.Dir) error {
	if err := dir.Overwrite(doctorProbe, "ok"); err != nil {
		return err
	}
	return dir.Remove(doctorProbe)
}

func isPortAvailable(addr string) bool {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

func isUDPAvailable(addr string) bool {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
