// Package commands implements the nfsmount CLI's subcommands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marmos91/nfs3client/internal/logger"
	"github.com/marmos91/nfs3client/internal/rpc"
)

// Version information, injected at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// connFlags collects the connection settings every subcommand below needs,
// populated by rootCmd's PersistentPreRunE from flags/env/config file (in
// that order of precedence).
type connFlags struct {
	PortmapPort int
	DialTimeout time.Duration
	CallTimeout time.Duration
	Metrics     bool
	Tracing     bool
	AuthFlavor  uint32
}

var flags connFlags

var rootCmd = &cobra.Command{
	Use:   "nfsmount",
	Short: "A command-line NFSv3 client",
	Long: `nfsmount drives an NFSv3 export directly over the wire: no kernel
mount, no FUSE, just the port-mapper/MOUNT/NFS exchange implemented in
pkg/nfsclient.

Every subcommand except version takes a target of the form host:/export,
mounts it for the duration of the command, and unmounts on exit.

Use "nfsmount [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (none is read unless this is set)")
	rootCmd.PersistentFlags().Int("portmap-port", 111, "port-mapper TCP port")
	rootCmd.PersistentFlags().Duration("dial-timeout", 10*time.Second, "timeout for the initial TCP connect")
	rootCmd.PersistentFlags().Duration("call-timeout", 30*time.Second, "timeout for the port lookup and port switch before each RPC call")
	rootCmd.PersistentFlags().Bool("metrics", false, "enable Prometheus instrumentation")
	rootCmd.PersistentFlags().Bool("tracing", true, "enable OpenTelemetry spans")
	rootCmd.PersistentFlags().String("auth", "sys", "RPC auth flavor to announce: sys or none")
	rootCmd.PersistentFlags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(catCmd)
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig wires viper to the --config flag (if given), the process
// environment (NFSMOUNT_ prefix, underscores in place of dashes), and
// the persistent flags above, then populates the package-level flags
// value subcommands read from.
func loadConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("NFSMOUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %q: %w", configFile, err)
		}
	}

	authFlavor, err := parseAuthFlavor(v.GetString("auth"))
	if err != nil {
		return err
	}

	flags = connFlags{
		PortmapPort: v.GetInt("portmap-port"),
		DialTimeout: v.GetDuration("dial-timeout"),
		CallTimeout: v.GetDuration("call-timeout"),
		Metrics:     v.GetBool("metrics"),
		Tracing:     v.GetBool("tracing"),
		AuthFlavor:  authFlavor,
	}

	return logger.Init(logger.Config{
		Level:  v.GetString("log-level"),
		Format: v.GetString("log-format"),
	})
}

// parseAuthFlavor maps the --auth flag to the rpc flavor constant this
// client knows how to announce. Any other RPC auth flavor is recognized
// by the library but not implemented (rpc.ErrAuthNotSupported), so the CLI
// only exposes the two flavors Dial can actually honor.
func parseAuthFlavor(name string) (uint32, error) {
	switch strings.ToLower(name) {
	case "sys", "":
		return rpc.AuthSys, nil
	case "none":
		return rpc.AuthNone, nil
	default:
		return 0, fmt.Errorf("invalid --auth %q: expected sys or none", name)
	}
}

// parseTarget splits a "host:/export" argument into its host and export
// components. The export must start with '/' and the host must be
// non-empty; the split point is the first colon, so an IPv6 host is not
// supported without brackets (out of scope for this demo client).
func parseTarget(target string) (host, export string, err error) {
	idx := strings.Index(target, ":")
	if idx <= 0 || idx == len(target)-1 {
		return "", "", fmt.Errorf("invalid target %q: expected host:/export", target)
	}
	host, export = target[:idx], target[idx+1:]
	if !strings.HasPrefix(export, "/") {
		return "", "", fmt.Errorf("invalid target %q: export must start with '/'", target)
	}
	return host, export, nil
}
