package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgup/internal/api"
	"imgup/internal/auth"
	"imgup/internal/config"
	"imgup/internal/credentials"
)

// terminalPrompter asks questions on out and reads answers from in. Secrets
// are read without echo when in is a terminal.
type terminalPrompter struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

func newTerminalPrompter(in *os.File, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func (p *terminalPrompter) Secret(label string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.Line(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	return string(secret), err
}

func runSetup(ctx context.Context, d *deps, client *api.Client, store *credentials.Store) (credentials.Credentials, error) {
	creds, err := auth.Setup(ctx, auth.SetupOptions{
		Prompter: d.prompter,
		Client:   client,
		Store:    store,
		Out:      d.stderr,
		OpenURL:  d.openURL,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmptyInput) || errors.Is(err, auth.ErrExchangeFailed) {
			return credentials.Credentials{}, err
		}
		return credentials.Credentials{}, withExitCode(exitCredentialStore, err)
	}
	fmt.Fprintln(d.stderr, okColor("Authorization complete; credentials saved to "+store.Path()))
	return creds, nil
}

func newAuthCmd(cfg *config.Config, d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize imgup with your Imgur account",
		Long: `Authorize imgup with your Imgur account.

Opens the Imgur application registration page, asks for the client id and
secret, then exchanges the PIN shown after authorization for tokens.
Existing credentials are replaced only when the whole exchange succeeds.`,
		Args: requireNoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credentials.NewStore(cfg.CredentialsPath())
			if err != nil {
				return withExitCode(exitMissingDependency, err)
			}
			client := api.NewClient(cfg.APIURL, cfg.AuthURL)
			_, err = runSetup(cmd.Context(), d, client, store)
			return err
		},
	}
}
