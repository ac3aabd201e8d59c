// Command larkbridge runs the Lark integration bridge: a chat bot that
// builds Bitable bases from natural-language requests, a meeting-minutes
// workflow, and a tool server speaking stdio JSON-RPC and HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/catalog"
	"github.com/soracane/larkbridge/internal/config"
	"github.com/soracane/larkbridge/internal/dispatch"
	"github.com/soracane/larkbridge/internal/intent"
	"github.com/soracane/larkbridge/internal/lark"
	"github.com/soracane/larkbridge/internal/logging"
	"github.com/soracane/larkbridge/internal/minutes"
	"github.com/soracane/larkbridge/internal/server"
	"github.com/soracane/larkbridge/internal/stdio"
	"github.com/soracane/larkbridge/internal/tools"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the flag overrides. They sit on top of the config file
// and the environment, so flags always win.
type options struct {
	configPath   string
	appID        string
	appSecret    string
	listen       string
	logLevel     string
	templatesDir string
}

func (o *options) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.appID != "" {
		cfg.Lark.AppID = o.appID
	}
	if o.appSecret != "" {
		cfg.Lark.AppSecret = o.appSecret
	}
	if o.listen != "" {
		cfg.Server.Listen = o.listen
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.templatesDir != "" {
		cfg.Catalog.TemplatesDir = o.templatesDir
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:          "larkbridge",
		Short:        "Lark integration bridge: chat bot, Bitable builder, and tool server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&o.appID, "app-id", "", "Lark app id")
	root.PersistentFlags().StringVar(&o.appSecret, "app-secret", "", "Lark app secret")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&o.templatesDir, "templates-dir", "", "directory of template override YAML files")

	root.AddCommand(newServeCmd(o), newStdioCmd(o), newToolsCmd(o), newVersionCmd())
	return root
}

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with SSE, MCP and Lark webhook endpoints",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runServe(o)
		},
	}
	cmd.Flags().StringVar(&o.listen, "listen", "", "listen address (host:port)")
	return cmd
}

func newStdioCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the tool registry over stdio JSON-RPC",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runStdio(o)
		},
	}
}

func newToolsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(o, cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "larkbridge %s\n", version)
		},
	}
}

// app is the fully wired process.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	client     *lark.Client
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	minutes    *minutes.Handler
	registry   *tools.Registry
}

// buildApp wires every component. Credentials are validated up front
// so a misconfigured process dies at startup, not on first use.
func buildApp(o *options) (*app, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	client, err := lark.NewClient(lark.Config{
		AppID:       cfg.Lark.AppID,
		AppSecret:   cfg.Lark.AppSecret,
		BaseURL:     cfg.Lark.BaseURL,
		Timeout:     cfg.Lark.Timeout(),
		TokenMargin: cfg.Lark.TokenMargin(),
		Logger:      logger.Named("lark"),
	})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(logger.Named("catalog"), cfg.Catalog.TemplatesDir)
	if err != nil {
		return nil, err
	}

	bld := builder.New(client, cat, logger.Named("builder"))
	classifier := intent.NewRegexClassifier()
	disp := dispatch.New(classifier, bld, client, cat, logger.Named("dispatch"))
	mins := minutes.NewHandler(client, bld, minutes.NewStore(), minutes.Config{
		PendingTTL:  cfg.Minutes.PendingTTL(),
		WikiSpaceID: cfg.Minutes.WikiSpaceID,
	}, logger.Named("minutes"))

	registry, err := tools.NewRegistry(tools.Deps{
		Lark:       client,
		Builder:    bld,
		DocGen:     builder.NewDocGenerator(client),
		Dispatcher: disp,
		Classifier: classifier,
		Catalog:    cat,
		Logger:     logger.Named("tools"),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		catalog:    cat,
		dispatcher: disp,
		minutes:    mins,
		registry:   registry,
	}, nil
}

func runServe(o *options) error {
	a, err := buildApp(o)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh := server.NewWebhook(a.cfg.Webhook, a.dispatcher, a.minutes, a.client, a.logger.Named("webhook"))
	srv := server.New(a.cfg.Server, a.registry, wh, version, a.logger.Named("server"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.catalog.Watch(ctx) })
	g.Go(func() error {
		defer stop()
		return srv.Run(ctx)
	})
	return g.Wait()
}

func runStdio(o *options) error {
	a, err := buildApp(o)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.catalog.Watch(ctx) })
	g.Go(func() error {
		// stdin EOF ends the session; stop releases the watcher.
		defer stop()
		srv := stdio.New(a.registry, version, a.logger.Named("stdio"))
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	})
	return g.Wait()
}

// runTools prints the catalog without touching the network, so it runs
// without credentials. Handlers are wired but never called.
func runTools(o *options, w io.Writer) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	cat, err := catalog.New(logger, cfg.Catalog.TemplatesDir)
	if err != nil {
		return err
	}
	bld := builder.New(nil, cat, logger)
	classifier := intent.NewRegexClassifier()
	registry, err := tools.NewRegistry(tools.Deps{
		Builder:    bld,
		DocGen:     builder.NewDocGenerator(nil),
		Dispatcher: dispatch.New(classifier, bld, nil, cat, logger),
		Classifier: classifier,
		Catalog:    cat,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"tools": registry.Tools(),
		"count": registry.Len(),
	})
}
