package cmd

import (
	"github.com/spf13/cobra"
)

var (
	resumeFlag  bool
	restartFlag bool
)

func resumeArgs(args []string) []string {
	if resumeFlag {
		args = append(args, "--resume")
	}
	if restartFlag {
		args = append(args, "--restart")
	}
	return args
}

// runOnce connects, runs fn and closes.
func runOnce(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

var getCmd = &cobra.Command{
	Use:   "get REMOTE [LOCAL]",
	Short: "Download one file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, func(a *app) error { return a.get(resumeArgs(args)) })
	},
}

var putCmd = &cobra.Command{
	Use:   "put LOCAL [REMOTE]",
	Short: "Upload one file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, func(a *app) error { return a.put(resumeArgs(args)) })
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List a remote directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, func(a *app) error { return a.list(args) })
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, putCmd} {
		c.Flags().BoolVarP(&resumeFlag, "resume", "r", false, "Continue a partial transfer")
		c.Flags().BoolVar(&restartFlag, "restart", false, "Discard the partial file first")
	}
}
