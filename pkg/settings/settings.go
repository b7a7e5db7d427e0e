// Package settings merges frrlab defaults, an optional YAML config file,
// FRRLAB_* environment variables and command line flags.
package settings

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/psaab/frrlab/pkg/frr"
	"github.com/psaab/frrlab/pkg/lab"
	"github.com/psaab/frrlab/pkg/logging"
	"github.com/psaab/frrlab/pkg/peering"
)

// Keys. Flag names match the keys so BindPFlags lines them up.
const (
	KeyConfig      = "config"
	KeyOutput      = "output"
	KeyImage       = "image"
	KeyLogFile     = "log-file"
	KeyAdvertise   = "advertise"
	KeyJobs        = "jobs"
	KeyClean       = "clean"
	KeyMetricsFile = "metrics-file"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
)

// EnvPrefix is prepended to upper-cased keys, e.g. FRRLAB_LOG_LEVEL.
const EnvPrefix = "FRRLAB"

// Settings is the merged configuration of one frrlab invocation.
type Settings struct {
	Output      string `mapstructure:"output"`
	Image       string `mapstructure:"image"`
	LogFile     string `mapstructure:"log-file"`
	Advertise   string `mapstructure:"advertise"`
	Jobs        int    `mapstructure:"jobs"`
	Clean       bool   `mapstructure:"clean"`
	MetricsFile string `mapstructure:"metrics-file"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
}

// New returns a viper instance carrying the defaults and env binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyOutput, ".")
	v.SetDefault(KeyImage, lab.DefaultImage)
	v.SetDefault(KeyLogFile, frr.DefaultLogFile)
	v.SetDefault(KeyAdvertise, peering.AdvertiseInterAS.String())
	v.SetDefault(KeyJobs, runtime.GOMAXPROCS(0))
	v.SetDefault(KeyClean, false)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load binds flags, reads the config file named by the config key (if
// any) and returns the merged settings.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Settings, error) {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects values no command can use.
func (s *Settings) Validate() error {
	if _, err := peering.ParseAdvertiseMode(s.Advertise); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", s.LogFormat)
	}
	if s.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", s.Jobs)
	}
	return nil
}

// PeeringOptions converts the advertise setting. Validate has already
// accepted it, so the error is impossible after Load.
func (s *Settings) PeeringOptions() peering.Options {
	mode, _ := peering.ParseAdvertiseMode(s.Advertise)
	return peering.Options{Advertise: mode}
}

// RenderOptions returns the lab.Build options these settings select.
func (s *Settings) RenderOptions() lab.Options {
	return lab.Options{Image: s.Image, LogFile: s.LogFile, Jobs: s.Jobs}
}

// LogOptions returns the logging setup these settings select.
func (s *Settings) LogOptions() logging.Options {
	return logging.Options{Level: s.LogLevel, Format: s.LogFormat}
}

// AddFlags registers the flags shared by the generate and check commands.
// Defaults come from New; the flag defaults are only for help output.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyOutput, "o", ".", "parent directory of the lab")
	fs.String(KeyImage, lab.DefaultImage, "container image written to lab.conf")
	fs.String(KeyLogFile, frr.DefaultLogFile, "log file FRR is told to use")
	fs.String(KeyAdvertise, peering.AdvertiseInterAS.String(), "shared LANs to announce: inter-as or all-shared")
	fs.Int(KeyJobs, runtime.GOMAXPROCS(0), "machines rendered concurrently")
	fs.Bool(KeyClean, false, "remove the lab directory before writing")
	fs.String(KeyMetricsFile, "", "write generation metrics in textfile format")
}

// AddGlobalFlags registers flags every command understands.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "YAML config file")
	fs.String(KeyLogLevel, "info", "log level: debug, info, warn, error")
	fs.String(KeyLogFormat, "text", "log format: text or json")
}
