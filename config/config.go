package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/LambdaLabs/coretemp_exporter/dateformat"
	yaml "gopkg.in/yaml.v3"
)

var (
	// DefaultCoreTemp is a default unless the user provides particular values.
	// LogPath and DateFormat have no sensible default and must be configured.
	DefaultCoreTemp = CoreTempConfig{
		LogPattern: "*.csv",
		Executable: "Core Temp.exe",
	}
	// DefaultTailer is a default unless the user provides particular values.
	DefaultTailer = TailerConfig{
		Interval:    time.Second,
		NoDataDelay: time.Second,
		Watch:       false,
	}
	// DefaultSupervisor is a default unless the user provides particular values.
	DefaultSupervisor = SupervisorConfig{
		Enabled:   true,
		RunWindow: 10 * time.Second,
	}
	// DefaultConfig is the configuration used for any section missing from the file.
	DefaultConfig = Config{
		CoreTemp:   DefaultCoreTemp,
		Tailer:     DefaultTailer,
		Supervisor: DefaultSupervisor,
	}
)

// CoreTempConfig describes where Core Temp lives and how it writes its logs.
type CoreTempConfig struct {
	LogPath    string `yaml:"log_path"`
	DateFormat string `yaml:"date_format"`
	LogPattern string `yaml:"log_pattern"`
	Executable string `yaml:"executable"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (c *CoreTempConfig) UnmarshalYAML(unmarshal func(any) error) error {
	*c = DefaultCoreTemp
	type plain CoreTempConfig

	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	return nil
}

// TailerConfig controls the log tailing loop.
type TailerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	NoDataDelay time.Duration `yaml:"no_data_delay"`
	Watch       bool          `yaml:"watch"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (t *TailerConfig) UnmarshalYAML(unmarshal func(any) error) error {
	*t = DefaultTailer
	type plain TailerConfig

	if err := unmarshal((*plain)(t)); err != nil {
		return err
	}

	return nil
}

// SupervisorConfig controls how the Core Temp process is restarted.
type SupervisorConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RunWindow time.Duration `yaml:"run_window"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (s *SupervisorConfig) UnmarshalYAML(unmarshal func(any) error) error {
	*s = DefaultSupervisor
	type plain SupervisorConfig

	if err := unmarshal((*plain)(s)); err != nil {
		return err
	}

	return nil
}

// Config represents the coretemp_exporter config file
type Config struct {
	Loglevel   string           `yaml:"loglevel"`
	CoreTemp   CoreTempConfig   `yaml:"coretemp"`
	Tailer     TailerConfig     `yaml:"tailer"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// UnmarshalYAML is a custom YAML unmarshaler.
// It is heavily inspired by blackbox_exporter.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	*c = DefaultConfig
	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}
	return nil
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.CoreTemp.LogPath == "" {
		errs = append(errs, errors.New("coretemp.log_path is required"))
	}
	if c.CoreTemp.DateFormat == "" {
		errs = append(errs, errors.New("coretemp.date_format is required"))
	} else if _, err := dateformat.Layout(c.CoreTemp.DateFormat); err != nil {
		errs = append(errs, fmt.Errorf("coretemp.date_format: %w", err))
	}
	if c.CoreTemp.LogPattern == "" {
		errs = append(errs, errors.New("coretemp.log_pattern must not be empty"))
	}
	if c.Tailer.Interval <= 0 {
		errs = append(errs, errors.New("tailer.interval must be positive"))
	}
	if c.Tailer.NoDataDelay <= 0 {
		errs = append(errs, errors.New("tailer.no_data_delay must be positive"))
	}
	if c.Supervisor.Enabled {
		if c.CoreTemp.Executable == "" {
			errs = append(errs, errors.New("coretemp.executable is required when the supervisor is enabled"))
		}
		if c.Supervisor.RunWindow <= 0 {
			errs = append(errs, errors.New("supervisor.run_window must be positive"))
		}
	}
	return errors.Join(errs...)
}

// SafeConfig is a mutex-enabled Config.
type SafeConfig struct {
	sync.RWMutex
	Config *Config
}

// Read exporter config from an input file path.
func NewConfigFromFile(configFilePath string) (*Config, error) {
	file, err := os.Open(configFilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readConfigFrom(file)
}

func readConfigFrom(r io.Reader) (*Config, error) {
	config := &Config{}
	if err := yaml.NewDecoder(r).Decode(config); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("config is not valid: %w", err)
	}

	return config, nil
}

// ReloadConfig reads a given configuration file.
// If successfully read, the SafeConfig mutex is obtained and config structure rebuilt.
// A file which fails to load or validate leaves the previous configuration in place.
func (sc *SafeConfig) ReloadConfig(configFile string) error {
	var c, err = NewConfigFromFile(configFile)
	if err != nil {
		return err
	}

	sc.Lock()
	sc.Config = c
	sc.Unlock()

	return nil
}

// CoreTempSettings returns a copy of the current coretemp section.
func (sc *SafeConfig) CoreTempSettings() CoreTempConfig {
	sc.RLock()
	defer sc.RUnlock()
	return sc.Config.CoreTemp
}

// TailerSettings returns a copy of the current tailer section.
func (sc *SafeConfig) TailerSettings() TailerConfig {
	sc.RLock()
	defer sc.RUnlock()
	return sc.Config.Tailer
}

// SupervisorSettings returns a copy of the current supervisor section.
func (sc *SafeConfig) SupervisorSettings() SupervisorConfig {
	sc.RLock()
	defer sc.RUnlock()
	return sc.Config.Supervisor
}

// AppLogLevel applies a log level to the application.
func (sc *SafeConfig) AppLogLevel() string {
	sc.RLock()
	defer sc.RUnlock()
	logLevel := sc.Config.Loglevel
	if logLevel != "" {
		return logLevel
	}
	return "info"
}
