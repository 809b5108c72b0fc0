package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"imgup/internal/api"
	"imgup/internal/credentials"
)

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrExchangeFailed = errors.New("pin exchange failed")
	ErrRefreshFailed  = errors.New("token refresh failed")
)

// State names a step of the interactive setup.
type State string

const (
	StatePromptClientCredentials State = "prompt_client_credentials"
	StatePromptPin               State = "prompt_pin"
	StateExchangePin             State = "exchange_pin"
	StatePersisted               State = "persisted"
	StateAbortedEmpty            State = "aborted_empty"
	StateAbortedExchangeFailed   State = "aborted_exchange_failed"
)

// Prompter reads answers from the user.
type Prompter interface {
	Line(label string) (string, error)
	Secret(label string) (string, error)
}

// TokenClient talks to the token endpoint.
type TokenClient interface {
	AuthorizeURL(clientID string) string
	RequestToken(ctx context.Context, form url.Values, bearer string) (api.TokenResponse, error)
}

// CredentialSaver persists a full credential record.
type CredentialSaver interface {
	Save(creds credentials.Credentials) error
}

// SetupOptions wires the collaborators of Setup.
type SetupOptions struct {
	Prompter        Prompter
	Client          TokenClient
	Store           CredentialSaver
	Out             io.Writer
	RegistrationURL string
	// OpenURL opens a page in the browser. When nil or failing the URL is
	// printed instead.
	OpenURL func(string) error
	// OnState observes state transitions.
	OnState func(State)
}

// Setup runs the one-time PIN authorization and persists the resulting
// credentials. Nothing is written unless every step succeeds.
func Setup(ctx context.Context, opts SetupOptions) (credentials.Credentials, error) {
	enter := func(s State) {
		slog.Debug("auth setup", "state", s)
		if opts.OnState != nil {
			opts.OnState(s)
		}
	}

	enter(StatePromptClientCredentials)
	registration := opts.RegistrationURL
	if registration == "" {
		registration = api.RegistrationURL
	}
	showURL(opts, "Register an application (choose \"OAuth 2 authorization without a callback URL\")", registration)

	clientID, err := prompt(opts.Prompter.Line, "Client ID")
	if err != nil {
		enter(StateAbortedEmpty)
		return credentials.Credentials{}, err
	}
	clientSecret, err := prompt(opts.Prompter.Secret, "Client secret")
	if err != nil {
		enter(StateAbortedEmpty)
		return credentials.Credentials{}, err
	}

	enter(StatePromptPin)
	showURL(opts, "Authorize the application and copy the PIN", opts.Client.AuthorizeURL(clientID))
	pin, err := prompt(opts.Prompter.Line, "PIN")
	if err != nil {
		enter(StateAbortedEmpty)
		return credentials.Credentials{}, err
	}

	enter(StateExchangePin)
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "pin")
	form.Set("pin", pin)
	tokens, err := opts.Client.RequestToken(ctx, form, "")
	if err != nil {
		enter(StateAbortedExchangeFailed)
		return credentials.Credentials{}, fmt.Errorf("%w (is the PIN correct?): %v", ErrExchangeFailed, err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		enter(StateAbortedExchangeFailed)
		return credentials.Credentials{}, fmt.Errorf("%w: response missing access_token or refresh_token (is the PIN correct?)", ErrExchangeFailed)
	}

	creds := credentials.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := opts.Store.Save(creds); err != nil {
		return credentials.Credentials{}, fmt.Errorf("save credentials: %w", err)
	}
	enter(StatePersisted)
	return creds, nil
}

// Refresh trades the stored refresh token for a new pair, persists it and
// returns the updated record. The caller's value is left untouched.
func Refresh(ctx context.Context, client TokenClient, store CredentialSaver, creds credentials.Credentials) (credentials.Credentials, error) {
	form := url.Values{}
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("grant_type", "refresh_token")

	tokens, err := client.RequestToken(ctx, form, creds.AccessToken)
	if err != nil {
		return creds, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return creds, fmt.Errorf("%w: response missing access_token or refresh_token", ErrRefreshFailed)
	}

	updated := creds.WithTokens(tokens.AccessToken, tokens.RefreshToken)
	if err := store.Save(updated); err != nil {
		return creds, fmt.Errorf("save refreshed credentials: %w", err)
	}
	slog.Debug("access token refreshed")
	return updated, nil
}

func prompt(read func(string) (string, error), label string) (string, error) {
	value, err := read(label)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s must not be blank", ErrEmptyInput, label)
	}
	return value, nil
}

func showURL(opts SetupOptions, label, rawURL string) {
	if opts.OpenURL != nil {
		err := opts.OpenURL(rawURL)
		if err == nil {
			if opts.Out != nil {
				_, _ = fmt.Fprintf(opts.Out, "%s: opened %s in your browser\n", label, rawURL)
			}
			return
		}
		slog.Debug("open browser failed", "url", rawURL, "error", err)
	}
	if opts.Out != nil {
		_, _ = fmt.Fprintf(opts.Out, "%s: %s\n", label, rawURL)
	}
}
