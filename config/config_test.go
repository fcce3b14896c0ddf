package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestConfigFromFile(t *testing.T) {
	configFile := "testdata/config.example.yml"

	config, err := NewConfigFromFile(configFile)
	assert.NoError(t, err)
	assert.NotNil(t, config)

	assert.Equal(t, "info", config.Loglevel)
	assert.Equal(t, `C:\Program Files\Core Temp`, config.CoreTemp.LogPath)
	assert.Equal(t, "HH:mm:ss MM/dd/yy", config.CoreTemp.DateFormat)
	assert.Equal(t, "*.csv", config.CoreTemp.LogPattern)
	assert.Equal(t, "Core Temp.exe", config.CoreTemp.Executable)
	assert.Equal(t, 2*time.Second, config.Tailer.Interval)
	assert.Equal(t, time.Second, config.Tailer.NoDataDelay)
	assert.True(t, config.Tailer.Watch)
	assert.True(t, config.Supervisor.Enabled)
	assert.Equal(t, 15*time.Second, config.Supervisor.RunWindow)
}

func TestConfigFromMissingFile(t *testing.T) {
	_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSectionsConfig(t *testing.T) {
	tT := map[string]struct {
		inputYAML     string
		wantErrString string
		wantConfig    *Config
	}{
		"only required settings get defaults everywhere else": {
			inputYAML: `
coretemp:
  log_path: /logs
  date_format: yyyy-MM-dd HH:mm:ss
`,
			wantConfig: &Config{
				CoreTemp: CoreTempConfig{
					LogPath:    "/logs",
					DateFormat: "yyyy-MM-dd HH:mm:ss",
					LogPattern: "*.csv",
					Executable: "Core Temp.exe",
				},
				Tailer:     DefaultTailer,
				Supervisor: DefaultSupervisor,
			},
		},
		"empty sections keep their defaults": {
			inputYAML: `
loglevel: debug
coretemp:
  log_path: /logs
  date_format: HH:mm:ss MM/dd/yy
  log_pattern: "CT-Log*.csv"
tailer:
supervisor:
  enabled: false
`,
			wantConfig: &Config{
				Loglevel: "debug",
				CoreTemp: CoreTempConfig{
					LogPath:    "/logs",
					DateFormat: "HH:mm:ss MM/dd/yy",
					LogPattern: "CT-Log*.csv",
					Executable: "Core Temp.exe",
				},
				Tailer: DefaultTailer,
				Supervisor: SupervisorConfig{
					Enabled:   false,
					RunWindow: 10 * time.Second,
				},
			},
		},
		"log path and date format are required": {
			inputYAML: `
loglevel: info
`,
			wantErrString: "coretemp.log_path is required\ncoretemp.date_format is required",
		},
		"date format must be translatable": {
			inputYAML: `
coretemp:
  log_path: /logs
  date_format: "HH:mm:ss t"
`,
			wantErrString: "coretemp.date_format: unsupported date format",
		},
		"durations must be positive": {
			inputYAML: `
coretemp:
  log_path: /logs
  date_format: HH:mm:ss
tailer:
  interval: 0s
supervisor:
  run_window: -1s
`,
			wantErrString: "tailer.interval must be positive\nsupervisor.run_window must be positive",
		},
		"erroneous config returns error": {
			inputYAML:     `foo:bar:baz`,
			wantErrString: "unmarshal errors:\n  line 1: cannot unmarshal !!str",
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			byteReader := bytes.NewReader([]byte(test.inputYAML))
			gotConfig, err := readConfigFrom(byteReader)
			if test.wantErrString != "" {
				gta.ErrorContains(t, err, test.wantErrString)
				return
			}
			gta.NilError(t, err)
			gta.Assert(t, cmp.DeepEqual(test.wantConfig, gotConfig))
		})
	}
}

func TestSafeConfigReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	write := func(body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}

	write(`
coretemp:
  log_path: /first
  date_format: HH:mm:ss
`)
	sc := &SafeConfig{Config: &Config{}}
	require.NoError(t, sc.ReloadConfig(path))
	assert.Equal(t, "/first", sc.CoreTempSettings().LogPath)
	assert.Equal(t, "info", sc.AppLogLevel())

	write(`
loglevel: warn
coretemp:
  log_path: /second
  date_format: HH:mm:ss
tailer:
  interval: 5s
`)
	require.NoError(t, sc.ReloadConfig(path))
	assert.Equal(t, "/second", sc.CoreTempSettings().LogPath)
	assert.Equal(t, 5*time.Second, sc.TailerSettings().Interval)
	assert.Equal(t, "warn", sc.AppLogLevel())

	write(`loglevel: [broken`)
	require.Error(t, sc.ReloadConfig(path))
	assert.Equal(t, "/second", sc.CoreTempSettings().LogPath, "failed reload must keep the previous config")
	assert.True(t, sc.SupervisorSettings().Enabled)
}
