// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/ytctl/pkg/version"
	"github.com/telekom/ytctl/pkg/ytctl/auth"
	"github.com/telekom/ytctl/pkg/ytctl/client"
	"github.com/telekom/ytctl/pkg/ytctl/output"
)

// ConnectionSummary describes a constructed client handle.
type ConnectionSummary struct {
	Context   string         `json:"context" yaml:"context"`
	Flow      string         `json:"flow" yaml:"flow"`
	Scopes    []string       `json:"scopes" yaml:"scopes"`
	BasePath  string         `json:"basePath" yaml:"basePath"`
	TokenType string         `json:"tokenType" yaml:"tokenType"`
	Expiry    time.Time      `json:"expiry" yaml:"expiry"`
	Storage   string         `json:"storage" yaml:"storage"`
	Identity  *auth.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
}

func NewConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Authenticate and build the YouTube client handle",
		Long: "Runs the installed-application OAuth2 flow for the current context, " +
			"builds the YouTube Data API client on top of it and reports the handle. " +
			"No API calls are made.",
		Args: cobra.NoArgs,
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

			loginCtx, cancel := context.WithTimeout(cmd.Context(), s.settings.LoginTimeout)
			defer cancel()
			ts, err := authenticator.Authenticate(loginCtx)
			if err != nil {
				return err
			}

			hub, err := client.New(cmd.Context(), s.transport, ts,
				client.WithEndpoint(s.context.APIEndpoint),
				client.WithUserAgent(version.UserAgent()),
				client.WithTimeout(s.settings.RequestTimeout),
			)
			if err != nil {
				return err
			}
			token, err := hub.Token()
			if err != nil {
				return err
			}
			rt.log.Debugw("Client handle ready", "context", s.contextName, "basePath", hub.BasePath())

			summary := ConnectionSummary{
				Context:   s.contextName,
				Flow:      string(authenticator.Method()),
				Scopes:    authenticator.Scopes(),
				BasePath:  hub.BasePath(),
				TokenType: token.Type(),
				Expiry:    token.Expiry,
				Storage:   s.tokens.StorageMode,
			}
			if stored, ok, err := s.tokens.GetToken(s.contextName); err == nil && ok {
				if identity, err := s.identity(cmd.Context(), stored.IDToken, false); err == nil {
					summary.Identity = identity
				}
			}
			return rt.render(summary, func(w io.Writer) {
				fields := []output.Field{
					{Name: "Context", Value: summary.Context},
					{Name: "Flow", Value: summary.Flow},
					{Name: "Scopes", Value: strings.Join(summary.Scopes, " ")},
					{Name: "Base path", Value: summary.BasePath},
					{Name: "Token expires", Value: output.FormatExpiry(summary.Expiry, time.Now())},
					{Name: "Token storage", Value: summary.Storage},
				}
				if summary.Identity != nil {
					fields = append(fields, output.Field{Name: "Identity", Value: summary.Identity.Display()})
				}
				output.WriteFields(w, fields)
			})
		},
	}
}
