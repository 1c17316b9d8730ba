// Package cli wires configuration, credentials and the AWS clients into the
// cdnkeeper command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/cdnkeeper/internal/awsx"
	"github.com/dmitrijs2005/cdnkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/cdnkeeper/internal/cfsign"
	"github.com/dmitrijs2005/cdnkeeper/internal/config"
	"github.com/dmitrijs2005/cdnkeeper/internal/invalidation"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/metrics"
	"github.com/dmitrijs2005/cdnkeeper/internal/s3store"
	"github.com/dmitrijs2005/cdnkeeper/internal/secrets"
	"github.com/dmitrijs2005/cdnkeeper/internal/tiering"
)

const metricsNamespace = "cdnkeeper"

// ObjectStore is everything the commands need from the bucket.
type ObjectStore interface {
	tiering.Lister
	tiering.Copier
	Put(ctx context.Context, in s3store.PutInput) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

var _ ObjectStore = (*s3store.Store)(nil)

type App struct {
	out    io.Writer
	errOut io.Writer

	secretsPath string
	logLevel    string
	flags       *config.Flags
	command     string

	config  *config.Config
	secrets *secrets.Provider
	logger  logging.Logger
	metrics *metrics.Prom

	// Client factories, replaced in tests.
	newObjectStore func(ctx context.Context, opts ...s3store.Option) (ObjectStore, error)
	newCloudFront  func(ctx context.Context) (invalidation.API, error)
	newSigner      func() (*cfsign.Signer, error)
}

func NewApp(out, errOut io.Writer) *App {
	a := &App{out: out, errOut: errOut}

	a.newObjectStore = func(ctx context.Context, opts ...s3store.Option) (ObjectStore, error) {
		client, err := awsx.NewS3Client(ctx, a.config, a.secrets)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return s3store.New(client, a.logger, opts...), nil
	}
	a.newCloudFront = func(ctx context.Context) (invalidation.API, error) {
		client, err := awsx.NewCloudFrontClient(ctx, a.secrets)
		if err != nil {
			return nil, fmt.Errorf("cloudfront client: %w", err)
		}
		return client, nil
	}
	a.newSigner = func() (*cfsign.Signer, error) {
		return cfsign.New(a.secrets, cfsign.WithMetrics(a.metrics))
	}

	return a
}

func (a *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run executes the command line args and pushes the collected metrics when
// a pushgateway is configured, whether or not the command succeeded.
func (a *App) Run(ctx context.Context, args []string) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.initSignalHandler(ctx, cancelFunc)

	root := a.RootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	a.pushMetrics(ctx)
	return err
}

// RootCommand builds the command tree bound to a.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cdnkeeper",
		Short: "Manage S3 assets served through CloudFront",
		Long: `cdnkeeper signs CloudFront URLs, moves objects between S3 storage
classes, uploads static assets and invalidates the static manifest.

Credentials and settings are read from a JSON secrets file or, when the
file is missing or unusable, from the environment.`,
		Version:           buildinfo.Version(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.secretsPath, "secrets", secrets.DefaultPath, "path to the JSON secrets file")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	a.flags = config.RegisterFlags(pf)

	root.AddCommand(
		a.signCommand(),
		a.signKeyCommand(),
		a.retierCommand(),
		a.invalidateCommand(),
		a.uploadCommand(),
		a.presignCommand(),
		a.versionCommand(),
	)

	return root
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	if a.logger == nil {
		a.logger = logging.New(a.errOut, level)
	}

	a.secrets = secrets.Load(a.secretsPath, a.logger)
	a.config = config.LoadConfig(a.secrets)
	config.ApplyFlags(a.config, a.flags)
	a.metrics = metrics.NewProm(metricsNamespace)
	a.command = cmd.Name()

	a.logger.Debug(cmd.Context(), "configuration loaded",
		"command", cmd.Name(),
		"secrets", a.secrets.Source(),
		"region", a.config.Region,
	)
	return nil
}

func (a *App) pushMetrics(ctx context.Context) {
	if a.config == nil || a.metrics == nil || a.config.PushGateway == "" {
		return
	}

	job := metricsNamespace
	if a.command != "" {
		job += "_" + a.command
	}

	if err := a.metrics.Push(ctx, a.config.PushGateway, job); err != nil {
		a.logger.Warn(ctx, "metrics push failed", "gateway", a.config.PushGateway, "error", err)
	}
}
