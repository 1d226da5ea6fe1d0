package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lunixbochs/hookcorn/go/models"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// printError prints err, and a stack trace if one is attached
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	st, ok := err.(stackTracer)
	if !ok {
		return
	}
	var frames [][2]string
	width := 0
	for _, f := range st.StackTrace() {
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)
		frames = append(frames, [2]string{fileline, method})
		if len(fileline) > width {
			width = len(fileline)
		}
		if method == "main" {
			break
		}
	}
	for _, f := range frames {
		pad := strings.Repeat(" ", width-len(f[0]))
		fmt.Fprintf(w, "%s%s | %s()\n", f[0], pad, f[1])
	}
}

func colorDefault() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// loadConfig fills config from --env and HOOKCORN_* variables without
// overriding flags given on the command line.
func loadConfig(cmd *cobra.Command, config *models.Config, envFile string) error {
	vals, err := models.ReadEnv(envFile)
	if err != nil {
		return err
	}
	return config.ApplyEnv(vals, func(flag string) bool {
		f := cmd.Flags().Lookup(flag)
		return f == nil || f.Changed
	})
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "hookcorn",
		Short:         "run classic BPF filters under scriptable event hooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(), newDescribeCmd())
	return root
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
