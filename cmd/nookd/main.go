package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/nookd/internal/audio"
	"github.com/satindergrewal/nookd/internal/catalog"
	"github.com/satindergrewal/nookd/internal/config"
)

// exitError carries a process exit code out of the command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fatal(err error) error { return &exitError{code: 1, err: err} }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(args)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	code := exitCode(err)
	var ee *exitError
	if errors.As(err, &ee) {
		err = ee.err
	}
	if err != nil {
		fmt.Fprintf(stderr, "nookd: %v\n", err)
	}
	return code
}

// exitCode maps a command result to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func newRootCmd(args []string) *cobra.Command {
	v := config.New()
	var (
		cfgFile     string
		listDevices bool
	)

	cmd := &cobra.Command{
		Use:           "nookd",
		Short:         "Play hourly game music over rain in the background",
		Long:          longHelp(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listDevices {
				return printDevices(cmd.OutOrStdout())
			}
			if err := config.ReadFile(v, cfgFile); err != nil {
				return fatal(err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return fatal(err)
			}
			return defaultHooks.run(cfg, childArgs(args, cfg, cfgFile))
		},
	}

	fs := cmd.Flags()
	config.Flags(fs)
	fs.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	fs.BoolVar(&listDevices, "list-devices", false, "print playback devices and exit")
	fs.SortFlags = false
	if err := config.Bind(v, fs); err != nil {
		panic(err)
	}
	return cmd
}

func longHelp() string {
	var b strings.Builder
	b.WriteString("nookd plays the music track for the current hour of the chosen game,\n")
	b.WriteString("switching at the top of every hour, with an optional rain loop underneath.\n")
	b.WriteString("It detaches into the background unless --no-daemon is given; starting a\n")
	b.WriteString("new instance replaces the running one.\n\n")
	b.WriteString("Games:\n")
	for _, g := range catalog.GameNames() {
		b.WriteString("  " + g + "\n")
	}
	b.WriteString("\nRain: " + strings.Join(catalog.RainNames(), ", ") + "\n")
	return b.String()
}

func printDevices(w io.Writer) error {
	devices, err := audio.PlaybackDevices()
	if err != nil {
		return fatal(err)
	}
	if len(devices) == 0 {
		return fatal(audio.ErrNoDevice)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEFAULT\tNAME\tID")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", def, d.Name, d.ID)
	}
	return tw.Flush()
}

// childArgs is the command line for the detached child. The child runs from
// "/", so paths given relative to the caller's directory are pinned.
func childArgs(args []string, cfg *config.Config, cfgFile string) []string {
	out := append([]string(nil), args...)
	pin := func(flag, path string) {
		if path == "" || filepath.IsAbs(path) {
			return
		}
		if abs, err := filepath.Abs(path); err == nil {
			out = append(out, "--"+flag+"="+abs)
		}
	}
	pin("config", cfgFile)
	pin("log-file", cfg.LogFile)
	pin("lock-path", cfg.LockPath)
	return out
}
