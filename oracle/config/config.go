package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	FileName  = "config.toml"
	EnvPrefix = "ORACLED"
)

var (
	globalConfig configData
	home         string
	mu           sync.RWMutex
)

type configData struct {
	MainChain chainConfig     `toml:"main_chain"`
	SideChain chainConfig     `toml:"side_chain"`
	Key       keyConfig       `toml:"key"`
	Scheduler schedulerConfig `toml:"scheduler"`
	Store     storeConfig     `toml:"store"`
	Relay     relayConfig     `toml:"relay"`
	Health    healthConfig    `toml:"health"`
	Log       logConfig       `toml:"log"`
}

type chainConfig struct {
	Endpoint          string  `toml:"endpoint"`
	Gateway           string  `toml:"gateway"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	FeeLimit          int64   `toml:"fee_limit,omitempty"`
}

type keyConfig struct {
	PrivateKey     string `toml:"private_key"`
	PrivateKeyFile string `toml:"private_key_file"`
}

type schedulerConfig struct {
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
	DelayStep string `toml:"delay_step"`
}

type storeConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

type relayConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Queue    string `toml:"queue"`
}

type healthConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Interval string `toml:"interval"`
}

type logConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   bool   `toml:"file"`
}

func defaultConfig() configData {
	return configData{
		MainChain: chainConfig{
			Endpoint:          "http://127.0.0.1:8090",
			Gateway:           "",
			RequestsPerSecond: 10,
			FeeLimit:          1_000_000_000,
		},
		SideChain: chainConfig{
			Endpoint:          "http://127.0.0.1:8091",
			Gateway:           "",
			RequestsPerSecond: 10,
		},
		Scheduler: schedulerConfig{
			Workers:   0,
			QueueSize: 256,
			DelayStep: "30s",
		},
		Store: storeConfig{
			Backend: "goleveldb",
			Dir:     "data",
		},
		Relay: relayConfig{
			Addr:  "127.0.0.1:6379",
			Queue: "oracle:withdraw:events",
		},
		Health: healthConfig{
			Enabled:  true,
			Addr:     "127.0.0.1:26660",
			Interval: "30s",
		},
		Log: logConfig{
			Level:  "info",
			Format: "plain",
		},
	}
}

// DefaultHome returns ~/.oracled
func DefaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".oracled"
	}

	return filepath.Join(dir, ".oracled")
}

// Load reads <dir>/config.toml, writing the defaults first if it is missing
func Load(dir string) error {
	path := filepath.Join(dir, FileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteDefault(dir); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}

	mu.Lock()
	globalConfig = cfg
	home = dir
	mu.Unlock()

	return nil
}

// WriteDefault writes the default config to <dir>/config.toml
func WriteDefault(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := toml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal TOML: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewViper returns a viper instance reading ORACLED_* environment
// variables, e.g. ORACLED_KEY_PRIVATE_KEY for key.private_key.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// ApplyOverrides replaces file values with the ones set in v
func ApplyOverrides(v *viper.Viper) {
	mu.Lock()
	defer mu.Unlock()

	for key, dst := range map[string]*string{
		"main_chain.endpoint": &globalConfig.MainChain.Endpoint,
		"main_chain.gateway":  &globalConfig.MainChain.Gateway,
		"side_chain.endpoint": &globalConfig.SideChain.Endpoint,
		"side_chain.gateway":  &globalConfig.SideChain.Gateway,
		"key.private_key":     &globalConfig.Key.PrivateKey,
		"relay.addr":          &globalConfig.Relay.Addr,
		"relay.password":      &globalConfig.Relay.Password,
		"log.level":           &globalConfig.Log.Level,
		"log.format":          &globalConfig.Log.Format,
	} {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
}

func Validate() error {
	mu.RLock()
	defer mu.RUnlock()

	c := globalConfig

	for _, chain := range []struct {
		name string
		cfg  chainConfig
	}{
		{"main_chain", c.MainChain},
		{"side_chain", c.SideChain},
	} {
		if chain.cfg.Endpoint == "" {
			return fmt.Errorf("%s endpoint is required", chain.name)
		}
		if chain.cfg.Gateway == "" {
			return fmt.Errorf("%s gateway address is required", chain.name)
		}
		if chain.cfg.RequestsPerSecond < 0 {
			return fmt.Errorf("%s requests_per_second must not be negative", chain.name)
		}
	}

	if c.Key.PrivateKey == "" && c.Key.PrivateKeyFile == "" {
		return fmt.Errorf("private key or private key file is required")
	}

	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler workers must not be negative")
	}

	if d, err := time.ParseDuration(c.Scheduler.DelayStep); err != nil || d <= 0 {
		return fmt.Errorf("invalid scheduler delay_step %q", c.Scheduler.DelayStep)
	}

	switch c.Store.Backend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}

	if c.Relay.Addr == "" {
		return fmt.Errorf("relay address is required")
	}

	if c.Health.Enabled {
		if c.Health.Addr == "" {
			return fmt.Errorf("health address is required")
		}
		if _, err := time.ParseDuration(c.Health.Interval); err != nil {
			return fmt.Errorf("invalid health interval %q", c.Health.Interval)
		}
	}

	return nil
}

func Home() string {
	mu.RLock()
	defer mu.RUnlock()

	return home
}

func MainChainEndpoint() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.MainChain.Endpoint
}

func MainChainGateway() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.MainChain.Gateway
}

func MainChainRequestsPerSecond() float64 {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.MainChain.RequestsPerSecond
}

func FeeLimit() int64 {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.MainChain.FeeLimit
}

func SideChainEndpoint() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.SideChain.Endpoint
}

func SideChainGateway() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.SideChain.Gateway
}

func SideChainRequestsPerSecond() float64 {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.SideChain.RequestsPerSecond
}

// PrivateKey returns the hex private key, reading the key file if one is configured
func PrivateKey() (string, error) {
	mu.RLock()
	key, file, dir := globalConfig.Key.PrivateKey, globalConfig.Key.PrivateKeyFile, home
	mu.RUnlock()

	if key != "" {
		return key, nil
	}

	if file == "" {
		return "", fmt.Errorf("no private key configured")
	}

	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}

	bz, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read private key file: %w", err)
	}

	return strings.TrimSpace(string(bz)), nil
}

func Workers() int {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Scheduler.Workers
}

func QueueSize() int {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Scheduler.QueueSize
}

func DelayStep() time.Duration {
	mu.RLock()
	defer mu.RUnlock()

	d, _ := time.ParseDuration(globalConfig.Scheduler.DelayStep)
	return d
}

func StoreBackend() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Store.Backend
}

// StoreDir resolves the store directory against the home directory
func StoreDir() string {
	mu.RLock()
	defer mu.RUnlock()

	if filepath.IsAbs(globalConfig.Store.Dir) {
		return globalConfig.Store.Dir
	}

	return filepath.Join(home, globalConfig.Store.Dir)
}

func RelayAddr() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Relay.Addr
}

func RelayPassword() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Relay.Password
}

func RelayDB() int {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Relay.DB
}

func RelayQueue() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Relay.Queue
}

func HealthEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Health.Enabled
}

func HealthAddr() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Health.Addr
}

func HealthInterval() time.Duration {
	mu.RLock()
	defer mu.RUnlock()

	d, _ := time.ParseDuration(globalConfig.Health.Interval)
	return d
}

func LogLevel() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Log.Level
}

func LogFormat() string {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Log.Format
}

func LogToFile() bool {
	mu.RLock()
	defer mu.RUnlock()

	return globalConfig.Log.File
}

// SetForTesting installs a valid in-memory configuration
func SetForTesting(dir, mainEndpoint, sideEndpoint, gateway, privateKey string) {
	cfg := defaultConfig()
	cfg.MainChain.Endpoint = mainEndpoint
	cfg.MainChain.Gateway = gateway
	cfg.SideChain.Endpoint = sideEndpoint
	cfg.SideChain.Gateway = gateway
	cfg.Key.PrivateKey = privateKey
	cfg.Store.Backend = "memdb"
	cfg.Health.Enabled = false

	mu.Lock()
	globalConfig = cfg
	home = dir
	mu.Unlock()
}
