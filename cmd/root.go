package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	// Name is the binary name.
	Name = "libARUtils"
	// Version is reported by --version.
	Version = "0.3.0"
)

var (
	versionFlag bool
	cfgFileFlag string
	addressFlag string
	userFlag    string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           Name,
	Short:         "FTP transfer client for drone media and firmware.",
	Long:          "FTP transfer client for drone media and firmware. Without a subcommand it opens an interactive shell.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", Name, Version)
			return nil
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		a.runShell()
		return nil
	},
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", Name, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&versionFlag, "version", "v", false, "Show version")
	RootCmd.PersistentFlags().StringVarP(&cfgFileFlag, "config", "c", "", "Specify config file")
	RootCmd.PersistentFlags().StringVar(&addressFlag, "address", "", "Server host[:port], overrides [server] address")
	RootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Login name, overrides [server] username")

	RootCmd.AddCommand(getCmd, putCmd, lsCmd)
}
