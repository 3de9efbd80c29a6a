package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the optional application specific configuration passed to
// App.Init.
type Config map[string]interface{}

// BaseConfig configures the process hosting an App, and carries the App's own
// configuration under the app key.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	ListenAddress         string `mapstructure:"listen_address"`
	InsecureListenAddress string `mapstructure:"insecure_listen_address"`
	DebugListenAddress    string `mapstructure:"debug_listen_address"`

	// TLSCertificate and TLSKey are optional URLs loaded with LoadFile. When
	// set, the secure server is started on ListenAddress.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ReadHeaderTimeout   time.Duration `mapstructure:"read_header_timeout"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// BallastCapacity is the fraction of total memory held as GC ballast,
	// capped at half.
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// MemoryLeakCronSchedule restarts the process on a cron schedule.
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	// AppConfig is decoded by the App, typically with mapstructure.
	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ListenAddress:         ":8085",
	InsecureListenAddress: "localhost:8086",
	DebugListenAddress:    ":8123",

	ReadHeaderTimeout:   10 * time.Second,
	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   true,
	BallastCapacity: 0.333,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",
}

// Every base setting can also be set through the upper cased environment
// variable of the same name.
var envBoundKeys = []string{
	"log_level",
	"app_name",
	"listen_address",
	"insecure_listen_address",
	"debug_listen_address",
	"tls_certificate",
	"tls_private_key",
	"read_header_timeout",
	"shutdown_grace_period",
	"enable_pprof",
	"enable_expvar",
	"enable_ballast",
	"ballast_capacity",
	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",
	"new_relic_license_key",
}

func init() {
	for _, key := range envBoundKeys {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}
