package app

import (
	"crypto/tls"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	metrics_util "github.com/code-payments/token-manager-server/pkg/metrics"
	"github.com/code-payments/token-manager-server/pkg/osutil"
)

const maxBallastCapacity = 0.5

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	nr, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to new relic")
	}
	return nr, nil
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if metricsProvider != nil {
		formatter = metrics_util.NewNewRelicLogFormatter(metricsProvider, formatter)
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
		return
	}
	logrus.SetLevel(level)
}

// startDebugServer serves pprof and expvar on the debug address only. The
// default mux is replaced since importing those packages registers them on it.
func startDebugServer(config BaseConfig, logger *logrus.Entry) {
	http.DefaultServeMux = http.NewServeMux()

	if !config.EnableExpvar && !config.EnablePprof {
		return
	}

	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	go func() {
		for {
			err := http.ListenAndServe(config.DebugListenAddress, mux)
			logger.WithError(err).Warn("debug http server failed, retrying in 5s")
			time.Sleep(5 * time.Second)
		}
	}()
}

func allocateBallast(config BaseConfig) []byte {
	if !config.EnableBallast {
		return nil
	}

	capacity := min(config.BallastCapacity, maxBallastCapacity)
	return make([]byte, uint64(capacity*float32(osutil.GetTotalMemory())))
}

// startMemoryLeakCron returns a channel closed on the configured schedule, or
// a nil channel when the cron is disabled.
func startMemoryLeakCron(config BaseConfig) (<-chan struct{}, error) {
	if !config.EnableMemoryLeakCron {
		return nil, nil
	}

	ch := make(chan struct{})
	job := cron.New(cron.WithLocation(time.Local))
	_, err := job.AddFunc(config.MemoryLeakCronSchedule, func() {
		select {
		case <-ch:
		default:
			close(ch)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize memory leak cron")
	}

	job.Start()
	return ch, nil
}

type server struct {
	*http.Server

	name     string
	listener net.Listener
	tls      bool
}

// newServers listens on the insecure address, and on the secure address when
// a TLS certificate is configured.
func newServers(config BaseConfig) ([]*server, error) {
	insecure, err := net.Listen("tcp", config.InsecureListenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", config.InsecureListenAddress)
	}

	servers := []*server{{
		Server:   &http.Server{ReadHeaderTimeout: config.ReadHeaderTimeout},
		name:     "insecure",
		listener: insecure,
	}}

	if len(config.TLSCertificate) == 0 {
		return servers, nil
	}

	tlsConfig, err := loadTLSConfig(config)
	if err != nil {
		insecure.Close()
		return nil, err
	}

	secure, err := net.Listen("tcp", config.ListenAddress)
	if err != nil {
		insecure.Close()
		return nil, errors.Wrapf(err, "failed to listen on %s", config.ListenAddress)
	}

	return append(servers, &server{
		Server:   &http.Server{ReadHeaderTimeout: config.ReadHeaderTimeout, TLSConfig: tlsConfig},
		name:     "secure",
		listener: secure,
		tls:      true,
	}), nil
}

func loadTLSConfig(config BaseConfig) (*tls.Config, error) {
	if len(config.TLSKey) == 0 {
		return nil, errors.New("tls key must be provided if certificate is specified")
	}

	certBytes, err := LoadFile(config.TLSCertificate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}
	keyBytes, err := LoadFile(config.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// start serves handler in the background, reporting the server's name on
// shutdownCh once it stops.
func (s *server) start(handler http.Handler, logger *logrus.Entry, shutdownCh chan<- string) {
	s.Handler = handler
	log := logger.WithField("server", s.name)

	go func() {
		var err error
		if s.tls {
			err = s.ServeTLS(s.listener, "", "")
		} else {
			err = s.Serve(s.listener)
		}

		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http serve stopped")
		} else {
			log.Info("http server stopped")
		}
		shutdownCh <- s.name
	}()
}
