package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	statusFlags := &StatusFlags{}
	logsFlags := &LogsFlags{}
	stopFlags := &StopFlags{}
	pruneFlags := &PruneFlags{}

	cmd := command{}
	root := createRootCommand(globalFlags)

	root.AddCommand(
		createServeCommand(globalFlags),
		createRunCommand(cmd, runFlags),
		createStatusCommand(cmd, statusFlags),
		createListCommand(cmd, statusFlags),
		createLogsCommand(cmd, logsFlags),
		createStopCommand(cmd, stopFlags),
		createPruneCommand(cmd, pruneFlags),
	)

	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "jobkeep",
		Short: "Background job launcher and supervisor",
		Long: `Jobkeep launches shell commands as tracked background jobs, captures
their output, and answers status and log queries for them later.

Examples:
  jobkeep serve                     # Start daemon
  jobkeep run --label=build -- make -j4
  jobkeep status
  jobkeep logs <id> --tail=20
  jobkeep stop <id>`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	return root
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the jobkeep daemon",
		Long: `Start the jobkeep daemon. Jobs, their logs and the HTTP API live in
the daemon process; the other subcommands talk to it.

Examples:
  jobkeep serve                     # defaults, data under the user data dir
  jobkeep serve config.toml         # with config file
  jobkeep serve --listen=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serveFlags.ConfigPath == "" {
				serveFlags.ConfigPath = globalFlags.ConfigPath
			}
			return runServeCommand(serveFlags, args)
		},
	}

	cmd.Flags().StringVar(&serveFlags.DataDir, "data-dir", "", "directory for job metadata and logs")
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "HTTP listen address")

	return cmd
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "daemon API base URL (default http://127.0.0.1:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "API request timeout")
}

func createRunCommand(c command, flags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Launch a command as a tracked background job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(*flags, args)
		},
	}
	cmd.Flags().StringVar(&flags.Label, "label", "", "tracking label used in the job id")
	addAPIFlags(cmd, &flags.APIFlags)
	return cmd
}

func createStatusCommand(c command, flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [id]",
		Short: "Show one job, or all jobs when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*flags, args)
		},
	}
	addAPIFlags(cmd, &flags.APIFlags)
	return cmd
}

func createListCommand(c command, flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*flags, nil)
		},
	}
	addAPIFlags(cmd, &flags.APIFlags)
	return cmd
}

func createLogsCommand(c command, flags *LogsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print captured job output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logs(*flags, args)
		},
	}
	cmd.Flags().IntVar(&flags.Tail, "tail", 0, "print only the last N lines")
	cmd.Flags().IntVar(&flags.MaxChars, "max-chars", 0, "truncate the full log to the trailing N characters")
	addAPIFlags(cmd, &flags.APIFlags)
	return cmd
}

func createStopCommand(c command, flags *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Terminate a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(*flags, args)
		},
	}
	addAPIFlags(cmd, &flags.APIFlags)
	return cmd
}

func createPruneCommand(c command, flags *PruneFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove finished jobs and their logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Prune(*flags)
		},
	}
	addAPIFlags(cmd, &flags.APIFlags)
	return cmd
}
