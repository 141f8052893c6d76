// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/ytctl/pkg/ytctl/auth"
	"github.com/telekom/ytctl/pkg/ytctl/client"
	"github.com/telekom/ytctl/pkg/ytctl/config"
	"github.com/telekom/ytctl/pkg/ytctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ytctl configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigContextsCommand(),
		newConfigCurrentContextCommand(),
		newConfigSetContextCommand(),
		newConfigUseContextCommand(),
		newConfigSetValueCommand(),
		newConfigAddContextCommand(),
		newConfigAddApplicationCommand(),
		newConfigDeleteContextCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		contextName      string
		clientSecretFile string
		flow             string
		scopes           []string
		force            bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a ytctl config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if _, err := auth.ParseReturnMethod(flow); err != nil {
				return err
			}
			if contextName == "" {
				contextName = "default"
			}
			if clientSecretFile == "" {
				clientSecretFile = rt.clientSecretFile
			}
			if len(scopes) == 0 {
				scopes = client.DefaultScopes
			}

			cfg := config.DefaultConfig()
			cfg.CurrentContext = contextName
			ctx := config.Context{Name: contextName, Flow: flow, Scopes: scopes}
			if clientSecretFile != "" {
				if _, err := auth.LoadApplicationSecret(clientSecretFile); err != nil {
					return err
				}
				cfg.Applications = append(cfg.Applications, config.Application{
					Name:             contextName,
					ClientSecretFile: clientSecretFile,
				})
				ctx.Application = contextName
			}
			cfg.Contexts = append(cfg.Contexts, ctx)
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context-name", "default", "Context name")
	cmd.Flags().StringVar(&clientSecretFile, "secret-file", "", "OAuth2 client_secret.json for the context application")
	cmd.Flags().StringVar(&flow, "login-flow", string(auth.ReturnInteractive), "Login flow: interactive, redirect or device-code")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "OAuth2 scope (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			format := output.FormatYAML
			if rt.outputFormat == string(output.FormatJSON) {
				format = output.FormatJSON
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

// ContextSummary is one row of get-contexts.
type ContextSummary struct {
	Name        string   `json:"name" yaml:"name"`
	Current     bool     `json:"current" yaml:"current"`
	Application string   `json:"application,omitempty" yaml:"application,omitempty"`
	Flow        string   `json:"flow" yaml:"flow"`
	Scopes      []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

func newConfigContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-contexts",
		Short: "List configured contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			current := rt.cfg.CurrentContextOrDefault()
			summaries := make([]ContextSummary, 0, len(rt.cfg.Contexts))
			for _, ctx := range rt.cfg.Contexts {
				flow, _ := auth.ParseReturnMethod(ctx.Flow)
				summaries = append(summaries, ContextSummary{
					Name:        ctx.Name,
					Current:     ctx.Name == current,
					Application: ctx.Application,
					Flow:        string(flow),
					Scopes:      ctx.Scopes,
				})
			}
			return rt.render(summaries, func(w io.Writer) {
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					marker := ""
					if s.Current {
						marker = "*"
					}
					rows = append(rows, []string{marker, s.Name, s.Application, s.Flow, strings.Join(s.Scopes, ",")})
				}
				output.WriteTable(w, []string{"current", "name", "application", "flow", "scopes"}, rows)
			})
		},
	}
}

func newConfigCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), rt.cfg.CurrentContext)
			return nil
		},
	}
}

func newConfigSetContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-context NAME",
		Short: "Set the default context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err != nil {
				return err
			}
			rt.cfg.CurrentContext = name
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s\n", name)
			return nil
		},
	}
}

func newConfigUseContextCommand() *cobra.Command {
	cmd := newConfigSetContextCommand()
	cmd.Use = "use-context NAME"
	cmd.Aliases = []string{"use"}
	cmd.Short = "Alias for set-context"
	return cmd
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: "Supported keys: settings.output-format, settings.token-storage, settings.login-timeout, " +
			"settings.request-timeout, settings.rate-limit, settings.burst, settings.metrics-file, settings.token-cache",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if err := setSetting(&rt.cfg.Settings, args[0], args[1]); err != nil {
				return err
			}
			return config.Save(rt.configPathValue(), rt.cfg)
		},
	}
}

func setSetting(settings *config.Settings, key, value string) error {
	switch key {
	case "settings.output-format":
		format, err := output.ParseFormat(value)
		if err != nil {
			return err
		}
		settings.OutputFormat = string(format)
	case "settings.token-storage":
		mode, err := auth.ParseStorageMode(value)
		if err != nil {
			return err
		}
		settings.TokenStorage = mode
	case "settings.login-timeout", "settings.request-timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		if key == "settings.login-timeout" {
			settings.LoginTimeout = d
		} else {
			settings.RequestTimeout = d
		}
	case "settings.rate-limit":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate < 0 {
			return fmt.Errorf("invalid rate limit: %s", value)
		}
		settings.RateLimit = rate
	case "settings.burst":
		burst, err := strconv.Atoi(value)
		if err != nil || burst < 0 {
			return fmt.Errorf("invalid burst: %s", value)
		}
		settings.Burst = burst
	case "settings.metrics-file":
		settings.MetricsFile = value
	case "settings.token-cache":
		settings.TokenCache = value
	default:
		return fmt.Errorf("unsupported key: %s", key)
	}
	return nil
}

func newConfigAddContextCommand() *cobra.Command {
	var (
		application  string
		flow         string
		scopes       []string
		redirectPort int
		redirectURL  string
		listenAddr   string
		apiEndpoint  string
		caFile       string
		insecure     bool
	)
	cmd := &cobra.Command{
		Use:   "add-context NAME",
		Short: "Add a new context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err == nil {
				return fmt.Errorf("context already exists: %s", name)
			}
			if application != "" {
				if _, err := rt.cfg.FindApplication(application); err != nil {
					return err
				}
			}
			rt.cfg.SetContext(config.Context{
				Name:                  name,
				Application:           application,
				Flow:                  flow,
				Scopes:                scopes,
				RedirectPort:          redirectPort,
				RedirectURL:           redirectURL,
				ListenAddress:         listenAddr,
				APIEndpoint:           apiEndpoint,
				CAFile:                caFile,
				InsecureSkipTLSVerify: insecure,
			})
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Added context %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&application, "application", "", "Application providing the client secret")
	cmd.Flags().StringVar(&flow, "login-flow", "", "Login flow: interactive, redirect or device-code")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "OAuth2 scope (repeatable)")
	cmd.Flags().IntVar(&redirectPort, "redirect-port", 0, "Loopback port for the redirect flow (0 picks a free port)")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "Public callback URL for the redirect flow")
	cmd.Flags().StringVar(&listenAddr, "listen-address", "", "Host the redirect flow listener binds to")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "YouTube API base path override")
	cmd.Flags().StringVar(&caFile, "ca-file", "", "Extra CA bundle")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	return cmd
}

func newConfigAddApplicationCommand() *cobra.Command {
	var app config.Application
	cmd := &cobra.Command{
		Use:   "add-application NAME",
		Short: "Add an OAuth2 client registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			app.Name = args[0]
			if _, err := rt.cfg.FindApplication(app.Name); err == nil {
				return fmt.Errorf("application already exists: %s", app.Name)
			}
			if _, err := app.Secret(); err != nil {
				return err
			}
			rt.cfg.SetApplication(app)
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Added application %s\n", app.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&app.ClientSecretFile, "secret-file", "", "OAuth2 client_secret.json")
	cmd.Flags().StringVar(&app.ClientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&app.ClientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&app.ClientSecretEnv, "client-secret-env", "", "Environment variable holding the client secret")
	cmd.Flags().StringSliceVar(&app.RedirectURIs, "redirect-uri", nil, "Redirect URI (repeatable)")
	cmd.Flags().StringVar(&app.Authority, "authority", "", "OIDC issuer used for endpoint discovery")
	return cmd
}

func newConfigDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if err := rt.cfg.DeleteContext(name); err != nil {
				return err
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Deleted context %s\n", name)
			return nil
		},
	}
}
