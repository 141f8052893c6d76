// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/ytctl/pkg/ytctl/config"
	"github.com/telekom/ytctl/pkg/ytctl/output"
	"github.com/telekom/ytctl/pkg/ytctl/transport"
)

type Config struct {
	ConfigPath   string
	TokenPath    string
	OutputWriter io.Writer
	// ErrorWriter receives logs and login instructions.
	ErrorWriter io.Writer
	InputReader io.Reader
	// BrowserOpener replaces the system browser launcher when set.
	BrowserOpener func(string) error
}

type runtimeState struct {
	configPath       string
	tokenPath        string
	cfg              *config.Config
	contextOverride  string
	outputFormat     string
	template         string
	clientSecretFile string
	flow             string
	tokenStorage     string
	nonInteractive   bool
	noBrowser        bool
	verbose          bool
	metricsFile      string
	tokenCache       string
	redirectURL      string
	listenAddress    string
	redirectPort     int
	redirectPortSet  bool

	writer      io.Writer
	errWriter   io.Writer
	reader      io.Reader
	openBrowser func(string) error

	log      *zap.SugaredLogger
	registry *prometheus.Registry
	metrics  *transport.Metrics
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		TokenPath:    config.DefaultTokenPath(),
		OutputWriter: os.Stdout,
		ErrorWriter:  os.Stderr,
		InputReader:  os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:  cfg.ConfigPath,
		tokenPath:   cfg.TokenPath,
		writer:      cfg.OutputWriter,
		errWriter:   cfg.ErrorWriter,
		reader:      cfg.InputReader,
		openBrowser: cfg.BrowserOpener,
		log:         zap.NewNop().Sugar(),
	}

	root := &cobra.Command{
		Use:           "ytctl",
		Short:         "YouTube Data API client bootstrap",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.applyEnv(cmd); err != nil {
				return err
			}
			rt.log = newLogger(rt.errorWriter(), rt.verbose)

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.LoadOrDefault(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			if rt.metricsFile == "" {
				rt.metricsFile = cfg.Settings.MetricsFile
			}
			if rt.metricsFile != "" {
				rt.registry = prometheus.NewRegistry()
				metrics, err := transport.NewMetrics(rt.registry)
				if err != nil {
					return err
				}
				rt.metrics = metrics
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return rt.writeMetrics()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.contextOverride, "context", "c", "", "Context name override")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.template, "template", "", "Go template for output (sprig functions available)")
	root.PersistentFlags().StringVar(&rt.clientSecretFile, "client-secret-file", "", "Path to an OAuth2 client_secret.json, overrides the context application")
	root.PersistentFlags().StringVar(&rt.flow, "flow", "", "Login flow: interactive, redirect or device-code")
	root.PersistentFlags().StringVar(&rt.tokenStorage, "token-storage", "", "Token storage backend: memory, file or keychain")
	root.PersistentFlags().BoolVar(&rt.nonInteractive, "non-interactive", false, "Fail instead of prompting")
	root.PersistentFlags().BoolVar(&rt.noBrowser, "no-browser", false, "Do not open a browser")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging with request IDs")
	root.PersistentFlags().StringVar(&rt.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the command")
	root.PersistentFlags().StringVar(&rt.tokenCache, "token-cache", "", "Token cache file for --token-storage file")
	root.PersistentFlags().StringVar(&rt.redirectURL, "redirect-url", "", "Public callback URL for the redirect flow, e.g. a port-mapped container address")
	root.PersistentFlags().StringVar(&rt.listenAddress, "listen-address", "", "Host the redirect flow listener binds to (default 127.0.0.1)")
	root.PersistentFlags().IntVar(&rt.redirectPort, "redirect-port", 0, "Port the redirect flow listener binds to (0 picks a free port)")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewConnectCommand(),
		NewAuthCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

// applyEnv fills every option that was not given as a flag from YTCTL_*
// variables.
func (rt *runtimeState) applyEnv(cmd *cobra.Command) error {
	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}
	setString := func(name string, target *string, value string) {
		if !changed(name) && value != "" {
			*target = value
		}
	}
	setBool := func(name string, target *bool, value *bool) {
		if !changed(name) && value != nil {
			*target = *value
		}
	}
	setString("config", &rt.configPath, env.Config)
	setString("context", &rt.contextOverride, env.Context)
	setString("output", &rt.outputFormat, env.Output)
	setString("client-secret-file", &rt.clientSecretFile, env.ClientSecretFile)
	setString("flow", &rt.flow, env.Flow)
	setString("token-storage", &rt.tokenStorage, env.TokenStorage)
	setString("metrics-file", &rt.metricsFile, env.MetricsFile)
	setString("token-cache", &rt.tokenCache, env.TokenCache)
	setString("redirect-url", &rt.redirectURL, env.RedirectURL)
	setString("listen-address", &rt.listenAddress, env.ListenAddress)
	switch {
	case changed("redirect-port"):
		rt.redirectPortSet = true
	case env.RedirectPort != nil:
		rt.redirectPort = *env.RedirectPort
		rt.redirectPortSet = true
	}
	setBool("non-interactive", &rt.nonInteractive, env.NonInteractive)
	setBool("no-browser", &rt.noBrowser, env.NoBrowser)
	setBool("verbose", &rt.verbose, env.Verbose)

	if rt.writer == nil {
		rt.writer = os.Stdout
	}
	if rt.reader == nil {
		rt.reader = os.Stdin
	}
	if rt.configPath == "" {
		rt.configPath = config.DefaultConfigPath()
	}
	if rt.tokenPath == "" {
		rt.tokenPath = config.DefaultTokenPath()
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core).Sugar()
}

func (rt *runtimeState) writeMetrics() error {
	if rt.registry == nil || rt.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(rt.metricsFile, rt.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) ResolveContextName() string {
	if rt.contextOverride != "" {
		return rt.contextOverride
	}
	if rt.cfg != nil {
		return rt.cfg.CurrentContextOrDefault()
	}
	return ""
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return string(output.FormatTable)
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorage != "" {
		return rt.tokenStorage
	}
	if rt.cfg != nil {
		return rt.cfg.EffectiveSettings().TokenStorage
	}
	return ""
}

// TokenCachePath resolves the file token cache: flag or env, then the
// settings.token-cache config key, then the default path.
func (rt *runtimeState) TokenCachePath() string {
	if rt.tokenCache != "" {
		return rt.tokenCache
	}
	if rt.cfg != nil && rt.cfg.Settings.TokenCache != "" {
		return rt.cfg.Settings.TokenCache
	}
	return rt.tokenPath
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) errorWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}

// render writes obj as a template, json or yaml, or calls table for the
// human readable format.
func (rt *runtimeState) render(obj any, table func(io.Writer)) error {
	if rt.template != "" {
		return output.WriteTemplate(rt.Writer(), rt.template, obj)
	}
	format, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		table(rt.Writer())
		return nil
	}
	return output.WriteObject(rt.Writer(), format, obj)
}
