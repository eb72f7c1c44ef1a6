package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/ctrlbind/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌┬┐┬─┐┬  ┌┐ ┬┌┐┌┌┬┐
  │   │ ├┬┘│  ├┴┐││││ ││
  └─┘ ┴ ┴└─┴─┘└─┘┴┘└┘─┴┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ctrlbind",
		Short: "Attach controllers to element trees",
		Long: `ctrlbind binds controller types to element trees by the type of
their data context, wires handler methods to element events, and
serves sample trees over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		inspectCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printError reports err with its code when it carries one.
func printError(err error) {
	var coded interface{ Code() string }
	if stderrors.As(err, &coded) {
		err = errors.FromError(err, coded.Code())
	}
	errors.PrintError(err)
}

// printBanner prints the ctrlbind banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
