package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/regtrigger/internal/action/githubdispatch"
	"github.com/simplesurance/regtrigger/internal/cfg"
	"github.com/simplesurance/regtrigger/internal/dispatch"
	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/projector"
	"github.com/simplesurance/regtrigger/internal/provider"
	"github.com/simplesurance/regtrigger/internal/provider/dockerhub"
	"github.com/simplesurance/regtrigger/internal/provider/dtr"
	"github.com/simplesurance/regtrigger/internal/status"
	"github.com/simplesurance/regtrigger/internal/trigger"
)

const appName = "regtrigger"

// shutdown order, lower values run first
const (
	shutdownPrioHTTPServer = iota
	shutdownPrioEventLoop
	shutdownPrioLogger
)

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught, terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(name, listenAddr string, mux *http.ServeMux, serveFn func(*http.Server) error) {
	srv := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating "+name+" server",
			logfields.Event(name+"_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down "+name+" server failed",
				logfields.Event(name+"_server_termination_failed"),
				zap.Error(err),
			)
		}
	}, shutdownPrioHTTPServer)

	go func() {
		defer panicHandler()

		logger.Info(
			name+" server started",
			logfields.Event(name+"_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := serveFn(&srv)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info(name+" server terminated", logfields.Event(name+"_server_terminated"))
			return
		}

		logger.Fatal(
			name+" server terminated unexpectedly",
			logfields.Event(name+"_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
	Simulate    *string
}

var args arguments

const defConfigFile = "/etc/regtrigger/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the regtrigger configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
		Simulate: pflag.String(
			"simulate",
			"",
			"parse the webhook payload in the given file, print the environments of the builds it would trigger and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nReceive container registry webhooks and trigger builds.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func loadCfg(path string) (*cfg.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return cfg.Load(file)
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	config, err := loadCfg(*args.ConfigFile)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	}, shutdownPrioLogger)
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func triggersFromCfgFile(path string, ghClient githubdispatch.Client) ([]*trigger.Trigger, error) {
	config, err := loadCfg(path)
	if err != nil {
		return nil, err
	}

	return trigger.FromCfg(config, ghClient)
}

// reloadOnSIGHUP replaces the registered triggers with the ones from the
// configuration file when SIGHUP is received.
// Other settings of the configuration file are not reloaded.
func reloadOnSIGHUP(registry *trigger.Registry, ghClient githubdispatch.Client) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer panicHandler()

		for range sigCh {
			triggers, err := triggersFromCfgFile(*args.ConfigFile, ghClient)
			if err != nil {
				logger.Error(
					"reloading triggers failed, keeping the active triggers",
					logfields.Event("triggers_reload_failed"),
					zap.String("cfg_file", *args.ConfigFile),
					zap.Error(err),
				)
				continue
			}

			registry.Replace(triggers)

			logger.Info(
				"triggers reloaded",
				logfields.Event("triggers_reloaded"),
				zap.String("cfg_file", *args.ConfigFile),
				zap.String("triggers", registry.String()),
			)
		}
	}()
}

func parsePayloadFile(path, dtrHost string) (*notification.PushNotification, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	n, err := notification.Parse(raw)
	if err != nil {
		return nil, err
	}

	if n.Registry() == notification.RegistryDTR && dtrHost != "" {
		return notification.ParseDTR(raw, notification.WithHost(dtrHost))
	}

	return n, nil
}

// simulate prints the environments of the builds that the payload in path
// triggers. No actions are executed.
func simulate(path string, config *cfg.Config, registry *trigger.Registry) {
	n, err := parsePayloadFile(path, config.DTRHost)
	exitOnErr(fmt.Sprintf("could not parse payload file %s", path), err)

	evLoop := dispatch.NewEventLoop(registry, projector.New(registry))

	builds := evLoop.TriggeredBuilds(context.Background(), n)
	if len(builds) == 0 {
		fmt.Printf("notification %s does not trigger any job\n", n)
		return
	}

	for i, b := range builds {
		if i > 0 {
			fmt.Println()
		}

		fmt.Printf("Job: %s\n%s", b.Job(), b.Env.String())
	}
}

func registerProvider(mux *http.ServeMux, endpoint string, p *provider.Provider) {
	mux.HandleFunc(endpoint, p.HTTPHandler)

	logger.Info(
		"registered webhook http endpoint",
		logfields.Event("webhook_http_handler_registered"),
		logfields.Registry(string(p.Registry())),
		zap.String("endpoint", endpoint),
	)
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	githubClient := githubdispatch.NewGithubClient(config.GithubAPIToken)

	triggers, err := trigger.FromCfg(config, githubClient)
	exitOnErr(fmt.Sprintf("could not parse jobs from configuration file: %s", *args.ConfigFile), err)

	registry := trigger.NewRegistry(triggers...)

	if *args.Simulate != "" {
		simulate(*args.Simulate, config, registry)
		goodbye.Exit(context.Background(), 0)
	}

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("dockerhub_webhook_endpoint", config.DockerHubWebhookEndpoint),
		zap.String("dtr_webhook_endpoint", config.DTRWebhookEndpoint),
		zap.String("dtr_host", config.DTRHost),
		zap.String("webhook_token", hide(config.WebhookToken)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("prometheus_metrics_endpoint", config.MetricsEndpoint),
		zap.String("status_endpoint", config.StatusEndpoint),
		zap.Int("dedup_cache_size", config.DedupCacheSize),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("triggers", registry.String()),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	if config.HTTPListenAddr == "" && config.HTTPSListenAddr == "" {
		fmt.Fprintf(os.Stderr, "https_server_listen_addr or http_server_listen_addr must be defined in the config file, both are unset\n")
		os.Exit(1)
	}

	if registry.Len() == 0 {
		logger.Warn(
			"config file does not define any jobs, notifications will not trigger builds",
			logfields.Event("cfg_no_jobs"),
		)
	}

	statusPage := status.New(registry, status.DefMaxRecentBuilds)

	evLoop := dispatch.NewEventLoop(
		registry,
		projector.New(registry),
		dispatch.WithActionRoutineDeferFunc(panicHandler),
		dispatch.WithDedupCacheSize(config.DedupCacheSize),
		dispatch.WithBuildObserver(statusPage.OnBuildTriggered),
	)

	evLoopDone := make(chan struct{})
	go func() {
		defer panicHandler()
		defer close(evLoopDone)

		evLoop.Start()
	}()

	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping event loop",
			logfields.Event("event_loop_stopping"),
		)

		evLoop.Stop()
		<-evLoopDone
	}, shutdownPrioEventLoop)

	reloadOnSIGHUP(registry, githubClient)

	mux := http.NewServeMux()

	registerProvider(mux, config.DockerHubWebhookEndpoint, dockerhub.New(
		evLoop.C(),
		provider.WithToken(config.WebhookToken),
	))

	registerProvider(mux, config.DTRWebhookEndpoint, dtr.New(
		evLoop.C(),
		config.DTRHost,
		provider.WithToken(config.WebhookToken),
	))

	if config.MetricsEndpoint != "" {
		mux.Handle(config.MetricsEndpoint, promhttp.Handler())
		logger.Info(
			"registered prometheus metrics http endpoint",
			logfields.Event("metrics_http_handler_registered"),
			zap.String("endpoint", config.MetricsEndpoint),
		)
	}

	if config.StatusEndpoint != "" {
		mux.HandleFunc(config.StatusEndpoint, statusPage.HTTPHandler)
		logger.Info(
			"registered status page http endpoint",
			logfields.Event("status_http_handler_registered"),
			zap.String("endpoint", config.StatusEndpoint),
		)
	}

	if config.HTTPListenAddr != "" {
		startHTTPServer("http", config.HTTPListenAddr, mux, func(srv *http.Server) error {
			return srv.ListenAndServe()
		})
	}

	if config.HTTPSListenAddr != "" {
		startHTTPServer("https", config.HTTPSListenAddr, mux, func(srv *http.Server) error {
			return srv.ListenAndServeTLS(config.HTTPSCertFile, config.HTTPSKeyFile)
		})
	}

	select {}
}
