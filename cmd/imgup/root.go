package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgup/internal/auth"
	"imgup/internal/config"
	"imgup/internal/format"
	"imgup/internal/schedule"
)

const defaultProbeTimeout = 5 * time.Second

// deps holds the process-level collaborators of the CLI so tests can swap
// them out.
type deps struct {
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	prompter     auth.Prompter
	scheduler    schedule.Scheduler
	openURL      func(string) error
	probeTimeout time.Duration
	getenv       func(string) string
}

func defaultDeps(cfg *config.Config) *deps {
	d := &deps{
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		scheduler:    schedule.NewProcessScheduler(),
		probeTimeout: defaultProbeTimeout,
		getenv:       os.Getenv,
	}
	d.prompter = newTerminalPrompter(os.Stdin, os.Stderr)
	if cfg.OpenBrowser {
		d.openURL = auth.OpenBrowser
	}
	return d
}

type uploadOptions struct {
	files         []string
	nullInput     bool
	deleteSeconds string
	linkType      string
	displaySize   string
}

func newRootCmd(cfg *config.Config, d *deps) *cobra.Command {
	var logLevel string
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "imgup [flags] [-- FILE...]",
		Short: "Upload images to Imgur and print shareable links",
		Long: fmt.Sprintf(`Upload images to Imgur and print shareable links.

Link types: %s
Display sizes: %s`,
			strings.Join(format.LinkTypeNames(), ", "),
			strings.Join(format.DisplaySizeCodes(), ", ")),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := setupLogging(d.stderr, logLevel, cfg.LogLevel)
			if err != nil {
				return withExitCode(exitUsage, err)
			}
			if warning != "" {
				fmt.Fprintln(d.stderr, hintColor(warning))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), cfg, d, opts, args, cmd.ArgsLenAtDash())
		},
	}

	cmd.Version = version
	cmd.SetIn(d.stdin)
	cmd.SetOut(d.stdout)
	cmd.SetErr(d.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitUsage, err)
	})

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.files, "file", "f", nil, "file to upload (repeatable)")
	flags.BoolVarP(&opts.nullInput, "null", "0", false, "read NUL-terminated file paths from stdin")
	flags.StringVarP(&opts.deleteSeconds, "delete", "d", "", "delete the uploaded images after SECONDS")
	flags.StringVarP(&opts.linkType, "link-type", "t", "", "link format (default from config: "+cfg.LinkType+")")
	flags.StringVarP(&opts.displaySize, "display-size", "s", "", "display size code (default from config: "+cfg.DisplaySize+")")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newAuthCmd(cfg, d),
		newDeleteCmd(cfg, d),
		newHistoryCmd(cfg, d),
		newConfigCmd(cfg, d),
		newScheduledDeleteCmd(cfg, d),
	)

	return cmd
}
