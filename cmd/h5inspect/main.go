// Command h5inspect opens an HDF5 file, reports the shape and type of one
// dataset and starts a Lua session with the file bound as f and the dataset
// as dset.
//
// Usage:
//
//	h5inspect [flags] <file> <dataset_path>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scigolib/h5inspect/internal/config"
	"github.com/scigolib/h5inspect/internal/logger"
	"github.com/scigolib/h5inspect/internal/session"
	"github.com/scigolib/h5inspect/internal/shell"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the exit code. Diagnostics go to
// errOut; out only carries the inspector's messages and the session.
func run(ctx context.Context, program string, args []string, in io.Reader, out, errOut io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", program, err)
		return session.ExitFailure
	}

	var (
		logLevel string
		noShell  bool
		exec     string
		code     = session.ExitOK
	)
	usage := func() {
		fmt.Fprintln(out, session.UsageLine(program))
		code = session.ExitFailure
	}
	cmd := &cobra.Command{
		Use:   "h5inspect <file> <dataset_path>",
		Short: "Inspect a dataset of an HDF5 file in an interactive Lua session",
		Long: `h5inspect opens an HDF5 file read-only, resolves a dataset by its
slash-delimited path, prints its shape and element type and starts a Lua
session in which the file is bound as f and the dataset as dset.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				usage()
				return nil
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			lc := logger.DefaultConfig()
			lc.Level = cfg.LogLevel
			lc.Pretty = cfg.LogPretty
			lc.File = cfg.LogFile
			lc.Out = errOut
			log, err := logger.New(lc)
			if err != nil {
				fmt.Fprintf(errOut, "%s: %v\n", program, err)
				code = session.ExitFailure
				return nil
			}
			defer func() { _ = log.Close() }()

			sh := shell.New(
				shell.WithInput(in),
				shell.WithOutput(out),
				shell.WithPrompt(cfg.Prompt),
				shell.WithMaxPrint(cfg.MaxPrint),
				shell.WithHistBins(cfg.HistBins),
				shell.WithLogger(log),
			)
			code = session.New(program, out, sh, log).Launch(cmd.Context(), args, session.Options{
				NoShell: noShell,
				Exec:    exec,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", cfg.LogLevel, "diagnostics level on stderr (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "print the dataset report and exit")
	cmd.Flags().StringVarP(&exec, "exec", "e", "", "run a Lua chunk with f and dset bound instead of the interactive session")

	// -h and --help count as arguments: they get the usage line.
	cmd.SetHelpFunc(func(*cobra.Command, []string) { usage() })

	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", program, err)
		usage()
	}
	return code
}
