package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/dbmigration/ec2secrets/internal/application"
	"github.com/dbmigration/ec2secrets/internal/config"
	"github.com/dbmigration/ec2secrets/internal/logging"
	"github.com/dbmigration/ec2secrets/internal/secrets"
)

var signalNotify = signal.Notify

// Exit codes.
const (
	exitOK         = 0
	exitIncomplete = 1
	exitUsage      = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	app *kingpin.Application

	configFile     *string
	envFile        *string
	firebaseConfig *string
	logLevel       *string

	serve          *kingpin.CmdClause
	listen         *string
	watch          *bool
	watchSet       bool
	reloadSchedule *string
	rateLimitRPS   *float64
	rateLimitBurst *int

	status *kingpin.CmdClause

	check  *kingpin.CmdClause
	strict *bool

	show   *kingpin.CmdClause
	format *string
	reveal *bool

	export *kingpin.CmdClause
	shell  *bool
}

func newCLI(stderr io.Writer) *cli {
	c := &cli{}
	c.app = kingpin.New("ec2secrets", "Resolves deployment configuration for the database migration analyzer on EC2")
	c.app.UsageWriter(stderr)
	c.app.ErrorWriter(stderr)

	c.configFile = c.app.Flag("config", "Path to the launcher configuration file (YAML or TOML)").String()
	c.envFile = c.app.Flag("env-file", "Explicit .env file, tried before the search directories").String()
	c.firebaseConfig = c.app.Flag("firebase-config", "Explicit Firebase service account JSON file").String()
	c.logLevel = c.app.Flag("log-level", "Log level (debug, info, warn, error)").String()

	c.serve = c.app.Command("serve", "Serve the status API and reload on file changes")
	c.listen = c.serve.Flag("listen", "Address the status API listens on").String()
	c.watch = c.serve.Flag("watch", "Reload when a candidate file changes").IsSetByUser(&c.watchSet).Bool()
	c.reloadSchedule = c.serve.Flag("reload-schedule", "Cron expression for periodic reloads").String()
	c.rateLimitRPS = c.serve.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = c.serve.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	c.status = c.app.Command("status", "Print a human-readable configuration report").Default()

	c.check = c.app.Command("check", "Print which integrations are configured as JSON")
	c.strict = c.check.Flag("strict", "Exit non-zero unless every integration is configured").Bool()

	c.show = c.app.Command("show", "Print the resolved sections")
	c.format = c.show.Flag("format", "Output format").Default("yaml").Enum("yaml", "json")
	c.reveal = c.show.Flag("reveal", "Print credentials unmasked").Bool()

	c.export = c.app.Command("export", "Print the resolved variables as a .env file the resolver reads back unchanged")
	c.shell = c.export.Flag("shell", "Print export statements quoted for eval in a POSIX shell").Bool()

	return c
}

func (c *cli) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile:         *c.configFile,
		EnvFile:            c.envFile,
		FirebaseConfigFile: c.firebaseConfig,
		ListenAddr:         c.listen,
		ReloadSchedule:     c.reloadSchedule,
		LogLevel:           c.logLevel,
	}
	if c.watchSet {
		overrides.Watch = c.watch
	}
	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}
	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}
	return overrides
}

// run parses args and executes one command. Resolver options are appended
// to the defaults, which lets tests substitute the environment.
func run(args []string, stdout, stderr io.Writer, resolverOpts ...secrets.ResolverOption) int {
	c := newCLI(stderr)
	command, err := c.app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "ec2secrets: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(c.overrides())
	if err != nil {
		fmt.Fprintf(stderr, "ec2secrets: failed to load configuration: %v\n", err)
		return exitUsage
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "ec2secrets: failed to initialize logger: %v\n", err)
		return exitUsage
	}
	defer func() {
		_ = logger.Sync()
	}()

	if command == c.serve.FullCommand() {
		return serve(cfg, logger, resolverOpts)
	}

	resolver := secrets.NewResolver(append([]secrets.ResolverOption{secrets.WithLogger(logger)}, resolverOpts...)...)
	snap := resolver.Resolve(secrets.Options{EnvFile: cfg.EnvFile, ConfigFile: cfg.FirebaseConfigFile})

	switch command {
	case c.check.FullCommand():
		return runCheck(stdout, stderr, snap, *c.strict)
	case c.show.FullCommand():
		return runShow(stdout, stderr, snap, *c.format, *c.reveal)
	case c.export.FullCommand():
		return runExport(stdout, stderr, resolver.Environment(), *c.shell)
	default:
		writeStatus(stdout, snap)
		return exitOK
	}
}

func serve(cfg config.Config, logger *zap.Logger, resolverOpts []secrets.ResolverOption) int {
	app, err := application.New(cfg, logger, application.WithResolverOptions(resolverOpts...))
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return exitIncomplete
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return exitIncomplete
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return exitOK
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
