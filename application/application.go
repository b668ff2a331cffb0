package application

import (
	"fmt"
	"os"
	"strings"

	zlog "github.com/mdavid/SuperSocket/pkg/log"
	zviper "github.com/mdavid/SuperSocket/pkg/util/viper"

	"github.com/mdavid/SuperSocket/internal/server"
)

// Application is the runtime container for a SuperSocket process.
// It owns configuration loading and process-wide logging setup.
type Application struct {
	cfg *zviper.Config
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run is the entry of a SuperSocket application.
// It parses command-line arguments (os.Args) and loads the configuration file
// using the following priority:
//  1. Default: ./config.yaml
//  2. Env: SUPERSOCKET_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	return a.initLogging()
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// ServerConfig unmarshals the "server" section of the configuration.
func (a *Application) ServerConfig() (*server.ServerConfig, error) {
	conf := &server.ServerConfig{}
	if a.cfg == nil {
		return conf, nil
	}
	if err := a.cfg.UnmarshalKey("server", conf); err != nil {
		return nil, fmt.Errorf("unmarshal server config: %w", err)
	}
	return conf, nil
}

// AdminAddr returns the admin endpoint address from the "admin.addr" key.
// An empty value means the admin host is disabled.
func (a *Application) AdminAddr() string {
	if a.cfg == nil {
		return ""
	}
	return a.cfg.GetString("admin.addr")
}

// loadConfig resolves the config file path and loads it via the viper wrapper.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := "./config.yaml"

	if envPath := os.Getenv("SUPERSOCKET_CONFIG_FILE_PATH"); envPath != "" {
		configPath = envPath
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			val := strings.TrimPrefix(arg, "--config=")
			if val != "" {
				configPath = val
			}
			continue
		}
	}

	cfg := zviper.New()
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}

	return cfg, nil
}

// initLogging configures the process-wide logger.
//
// The "log" section of the configuration takes priority; when absent the
// SUPERSOCKET_LOG_* env vars apply:
//   - SUPERSOCKET_LOG_LEVEL: log level (default "info").
//   - SUPERSOCKET_LOG_STDOUT: whether to log to stdout (default true).
//   - SUPERSOCKET_LOG_FORMAT: log format ("console" or "json", default "console").
//   - SUPERSOCKET_LOG_FILE_DIR: log directory.
//   - SUPERSOCKET_LOG_FILE: log file name (empty means no file).
func (a *Application) initLogging() error {
	cfg := &zlog.Config{
		Level:  getenvDefault("SUPERSOCKET_LOG_LEVEL", "info"),
		Format: getenvDefault("SUPERSOCKET_LOG_FORMAT", "console"),
		Stdout: getenvBool("SUPERSOCKET_LOG_STDOUT", true),
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("SUPERSOCKET_LOG_FILE_DIR", ""),
			Filename: getenvDefault("SUPERSOCKET_LOG_FILE", ""),
		},
	}

	if a.cfg != nil {
		if err := a.cfg.UnmarshalKey("log", cfg); err != nil {
			return fmt.Errorf("unmarshal log config: %w", err)
		}
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
