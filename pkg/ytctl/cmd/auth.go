// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/ytctl/pkg/ytctl/auth"
	"github.com/telekom/ytctl/pkg/ytctl/output"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage OAuth2 credentials",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Run the login flow and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			s, err := rt.newSession(cmd.Context())
			if err != nil {
				return err
			}
			authenticator, err := s.authenticator(cmd.Context(), rt)
			if err != nil {
				return err
			}
			if s.tokens.StorageMode == auth.StorageMemory {
				rt.log.Warnw("Token storage is memory, the token is discarded when ytctl exits", "hint", "use --token-storage file or keychain")
			}

			loginCtx, cancel := context.WithTimeout(cmd.Context(), s.settings.LoginTimeout)
			defer cancel()
			result, err := authenticator.Login(loginCtx)
			if err != nil {
				return err
			}
			stored := auth.StoredTokenFrom(result.Token)
			stored.IDToken = result.IDToken
			if err := s.tokens.SaveToken(s.contextName, stored); err != nil {
				return err
			}

			message := fmt.Sprintf("Authenticated. Token expires at %s", stored.Expiry.UTC().Format(time.RFC3339))
			if identity, err := s.identity(cmd.Context(), stored.IDToken, false); err == nil && identity != nil {
				message = fmt.Sprintf("Authenticated as %s. Token expires at %s", identity.Display(), stored.Expiry.UTC().Format(time.RFC3339))
			}
			_, _ = fmt.Fprintln(rt.Writer(), message)
			return nil
		},
	}
}

// AuthStatus is the cached credential state of a context.
type AuthStatus struct {
	Context         string         `json:"context" yaml:"context"`
	Authenticated   bool           `json:"authenticated" yaml:"authenticated"`
	Storage         string         `json:"storage" yaml:"storage"`
	Expiry          time.Time      `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Expired         bool           `json:"expired" yaml:"expired"`
	HasRefreshToken bool           `json:"hasRefreshToken" yaml:"hasRefreshToken"`
	Identity        *auth.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
}

func newAuthStatusCommand() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached token for the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			s, err := rt.newSession(cmd.Context())
			if err != nil {
				return err
			}
			token, ok, err := s.tokens.GetToken(s.contextName)
			if err != nil {
				return err
			}
			status := AuthStatus{Context: s.contextName, Storage: s.tokens.StorageMode, Authenticated: ok}
			if ok {
				status.Expiry = token.Expiry
				status.Expired = !token.Expiry.IsZero() && time.Now().After(token.Expiry)
				status.HasRefreshToken = token.RefreshToken != ""
				if verify {
					if err := s.discover(cmd.Context()); err != nil {
						return err
					}
				}
				identity, err := s.identity(cmd.Context(), token.IDToken, verify)
				if err != nil {
					if verify {
						return err
					}
					rt.log.Debugw("Could not read id token", "error", err)
				}
				status.Identity = identity
			}
			return rt.render(status, func(w io.Writer) {
				if !status.Authenticated {
					_, _ = fmt.Fprintln(w, "Not authenticated")
					return
				}
				fields := []output.Field{
					{Name: "Context", Value: status.Context},
					{Name: "Storage", Value: status.Storage},
					{Name: "Token expires", Value: output.FormatExpiry(status.Expiry, time.Now())},
					{Name: "Refresh token", Value: fmt.Sprintf("%t", status.HasRefreshToken)},
				}
				if status.Identity != nil {
					fields = append(fields, output.Field{Name: "Identity", Value: status.Identity.Display()})
				}
				output.WriteFields(w, fields)
			})
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the id_token signature against the issuer")
	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			s, err := rt.newSession(cmd.Context())
			if err != nil {
				return err
			}
			if revoke {
				token, ok, err := s.tokens.GetToken(s.contextName)
				if err != nil {
					return err
				}
				if ok {
					if err := s.discover(cmd.Context()); err != nil {
						return err
					}
					value := token.RefreshToken
					if value == "" {
						value = token.AccessToken
					}
					if err := auth.Revoke(cmd.Context(), s.httpClient, s.revokeURL, value); err != nil {
						return err
					}
				}
			}
			if err := s.tokens.DeleteToken(s.contextName); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke the token at the provider before removing it")
	return cmd
}
