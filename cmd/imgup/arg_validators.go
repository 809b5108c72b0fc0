package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func requireAtLeastArgs(min int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min {
			return withExitCode(exitUsage, errors.New(message))
		}
		return nil
	}
}

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return withExitCode(exitUsage, errors.New(message))
		}
		return nil
	}
}

func requireNoArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return withExitCode(exitUsage, fmt.Errorf("unexpected argument %q", args[0]))
	}
	return nil
}
