package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"imgup/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	errorColor = color.New(color.FgRed).SprintFunc()
	hintColor  = color.New(color.FgYellow).SprintFunc()
	okColor    = color.New(color.FgGreen).SprintFunc()
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorColor(err.Error()))
		os.Exit(exitMissingDependency)
	}

	if err := newRootCmd(cfg, defaultDeps(cfg)).Execute(); err != nil {
		printCLIError(err)
		os.Exit(exitCode(err))
	}
}

func printCLIError(err error) {
	for _, line := range formatCLIError(err) {
		if strings.HasPrefix(line, "hint:") {
			fmt.Fprintln(os.Stderr, hintColor(line))
			continue
		}
		fmt.Fprintln(os.Stderr, errorColor(line))
	}
}
