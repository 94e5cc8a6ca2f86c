package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tutorprobe/internal/canon"
	"github.com/roach88/tutorprobe/internal/token"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Claims []string // key=value pairs
	Expiry string

	// Now overrides the issue time (for testing).
	Now func() time.Time
}

// TokenInfo is the JSON payload of the token and inspect commands.
type TokenInfo struct {
	Token     string       `json:"token,omitempty"`
	Claims    token.Claims `json:"claims"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for manual requests",
		Long: `Mint an HS256 bearer token signed with JWT_SECRET (or the insecure
development secret when unset). Claims are given as key=value pairs and
sent as strings.

Examples:
  tutorprobe token --claim id=000000000000000000000001 --claim email=student@test.com --claim role=student
  tutorprobe token --claim role=admin --expiry 12h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mintToken(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Claims, "claim", "c", nil, "claim as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Expiry, "expiry", token.DefaultExpiry, "token lifetime, e.g. 7d, 30d, 12h")

	return cmd
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a token and print its claims",
		Long: `Verify a token against JWT_SECRET and print its claims and expiry.

Exit codes:
  0 - Token is valid
  1 - Token is malformed, expired, or signed with another secret`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectToken(rootOpts, args[0], cmd)
		},
	}
}

func mintToken(opts *TokenOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	claims, err := parseClaims(opts.Claims)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "invalid --claim", err)
	}

	var issOpts []token.Option
	if opts.Now != nil {
		issOpts = append(issOpts, token.WithClock(opts.Now))
	}
	iss, err := token.NewIssuer(opts.Config.Secret, issOpts...)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to create token issuer", err)
	}
	opts.warnDevSecret()

	tok, err := iss.Issue(claims, opts.Expiry)
	if err != nil {
		return out.Fail(ExitCommandError, CodeToken, "failed to mint token", err)
	}
	exp, err := iss.ExpiresAt(tok)
	if err != nil {
		return out.Fail(ExitCommandError, CodeToken, "failed to read minted token", err)
	}

	info := TokenInfo{Token: tok, Claims: claims, ExpiresAt: exp.UTC()}
	return out.Success(info, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, tok)
		return err
	})
}

func inspectToken(opts *RootOptions, raw string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	iss, err := token.NewIssuer(opts.Config.Secret)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to create token issuer", err)
	}

	claims, err := iss.Inspect(strings.TrimSpace(raw))
	if err != nil {
		return out.Fail(ExitFailure, CodeToken, "token rejected", err)
	}
	exp, err := iss.ExpiresAt(strings.TrimSpace(raw))
	if err != nil {
		return out.Fail(ExitFailure, CodeToken, "token rejected", err)
	}

	info := TokenInfo{Claims: claims, ExpiresAt: exp.UTC()}
	return out.Success(info, func(w io.Writer) error {
		for _, k := range canon.SortedKeys(claims) {
			if _, err := fmt.Fprintf(w, "%s: %s\n", k, canon.String(claims[k])); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
		return err
	})
}

// parseClaims turns key=value pairs into claims. Later pairs override
// earlier ones with the same key.
func parseClaims(pairs []string) (token.Claims, error) {
	claims := token.Claims{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not key=value", pair)
		}
		claims[k] = v
	}
	return claims, nil
}
