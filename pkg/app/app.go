package app

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metrics_util "github.com/code-payments/token-manager-server/pkg/metrics"
)

const healthCheckPath = "/healthz"

// App is a long lived application that services HTTP requests.
//
// The App lives as long as the process. It is initialized before the HTTP
// servers start, and stopped after they stop serving.
type App interface {
	// Init blocks until the application is ready to receive requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// HTTPHandlers returns the handlers to install, keyed by path.
	HTTPHandlers() map[string]http.HandlerFunc

	// ShutdownChan is closed when the application shuts down on its own,
	// which also stops the HTTP servers.
	ShutdownChan() <-chan struct{}

	// Stop releases the application's resources. It must be idempotent.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run loads the base configuration, starts app and its HTTP servers, and
// blocks until a shutdown condition is hit.
func Run(app App, options ...Option) error {
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "app")

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		return err
	}
	configureLogger(config, metricsProvider)

	startDebugServer(config, logger)

	ballast := allocateBallast(config)

	memoryLeakShutdownCh, err := startMemoryLeakCron(config)
	if err != nil {
		return err
	}

	o := opts{
		middleware: []Middleware{
			requestIdMiddleware(),
			recoveryMiddleware(logger),
		},
	}
	for _, apply := range options {
		apply(&o)
	}

	servers, err := newServers(config)
	if err != nil {
		return err
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		return errors.Wrap(err, "failed to initialize application")
	}

	handler := newServeMux(app.HTTPHandlers(), o.middleware, metricsProvider)
	serverShutdownCh := make(chan string, len(servers))
	for _, s := range servers {
		s.start(handler, logger, serverShutdownCh)
	}

	select {
	case <-osSigCh:
		logger.Info("interrupt received, shutting down")
	case name := <-serverShutdownCh:
		logger.WithField("server", name).Info("http server shutdown")
	case <-memoryLeakShutdownCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	stoppedCh := make(chan struct{})
	go func() {
		defer close(stoppedCh)

		// Every shutdown path is idempotent, so all of them run regardless
		// of which condition fired.
		for _, s := range servers {
			if err := s.Shutdown(ctx); err != nil {
				logger.WithError(err).WithField("server", s.name).Warn("failed to gracefully stop http server")
			}
		}
		app.Stop()

		if metricsProvider != nil {
			metricsProvider.Shutdown(time.Second)
		}
	}()

	select {
	case <-stoppedCh:
		// Keeps the ballast reachable until exit
		if len(ballast) > 0 {
			ballast[0] = 1
		}
		return nil
	case <-ctx.Done():
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

func loadConfig(path string) (BaseConfig, error) {
	// viper only reports ConfigFileNotFoundError while searching for a
	// default file, so an explicit path is only used when it exists.
	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return BaseConfig{}, errors.Wrap(err, "failed to load config")
		}
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}
	if len(config.AppName) == 0 {
		return BaseConfig{}, errors.New("must specify an application name")
	}
	return config, nil
}

// newServeMux installs the app's handlers behind the middleware chain, plus a
// health check. Handlers are traced when a metrics provider is available.
func newServeMux(handlers map[string]http.HandlerFunc, middleware []Middleware, metricsProvider *newrelic.Application) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc(healthCheckPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for path, handlerFunc := range handlers {
		var handler http.Handler = handlerFunc
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}

		if metricsProvider == nil {
			mux.Handle(path, handler)
			continue
		}
		mux.Handle(newrelic.WrapHandle(metricsProvider, path, withMetricsProvider(metricsProvider, handler)))
	}

	return mux
}

func withMetricsProvider(metricsProvider *newrelic.Application, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(metrics_util.NewContext(r.Context(), metricsProvider)))
	})
}
