package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// Ethernity DeepTrace - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	RPC            RPCConfig            `yaml:"rpc"`
	Audit          AuditConfig          `yaml:"audit"`
	Snapshot       SnapshotConfig       `yaml:"snapshot"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	AttackDetector AttackDetectorConfig `yaml:"attack_detector"`
	Simulation     SimulationConfig     `yaml:"simulation"`
	Memory         MemoryConfig         `yaml:"memory"`
	Live           LiveConfig           `yaml:"live"`
}

// ServerConfig controls the operator HTTP surface (health, metrics
// passthrough, audit-log query) served over gorilla/mux.
type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	Interface        string   `yaml:"interface"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// RPCConfig describes the upstream node this instance traces against.
type RPCConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	ChainID        uint64 `yaml:"chain_id"`
	CacheEnabled   bool   `yaml:"cache_enabled"`
	CacheTTLSec    int    `yaml:"cache_ttl_sec"`
	BytecodeLRUCap int    `yaml:"bytecode_lru_cap"`
}

// AuditConfig is the Postgres DSN backing internal/audit's durable sink.
type AuditConfig struct {
	DSN              string `yaml:"dsn"`
	RetentionDays    int    `yaml:"retention_days"`
	MaxOpenConns     int    `yaml:"max_open_conns"`
	MaxIdleConns     int    `yaml:"max_idle_conns"`
}

// SnapshotConfig names the state-snapshot repository's profile and its
// embedded-pebble store location (spec §4.7).
type SnapshotConfig struct {
	Profile string `yaml:"profile"` // "basic" | "extended" | "deep"; no caller in this module reads it
	DBPath  string `yaml:"db_path"`
}

// PipelineConfig tunes internal/pipeline's staged run loop (spec §4.12).
type PipelineConfig struct {
	TickIntervalMs        int  `yaml:"tick_interval_ms"`
	LagBlocks             int  `yaml:"lag_blocks"`
	HistoryWindow         int  `yaml:"history_window"`
	MaxActiveGroups       int  `yaml:"max_active_groups"`
	LightweightSimulation bool `yaml:"lightweight_simulation"`
}

// AttackDetectorConfig tunes internal/attackdetector's thresholds.
type AttackDetectorConfig struct {
	BaseFeeWei             uint64 `yaml:"base_fee_wei"`
	EntropyToleranceWindow uint64 `yaml:"entropy_tolerance_window"`
}

// SimulationConfig tunes the Simulation Adapter's Anvil-backed session
// pool (spec §4.14).
type SimulationConfig struct {
	MinIdle     int    `yaml:"min_idle"`
	MaxCapacity int    `yaml:"max_capacity"`
	Image       string `yaml:"image"`
	HostPortLow int    `yaml:"host_port_low"`
}

// MemoryConfig tunes the Memory Layer's bounded cache and optional Redis
// cross-instance registry mirror.
type MemoryConfig struct {
	CacheCapacity  int    `yaml:"cache_capacity"`
	BufferPoolSize int    `yaml:"buffer_pool_size"`
	RedisEnabled   bool   `yaml:"redis_enabled"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
	MirrorInterval int    `yaml:"mirror_interval_sec"`
}

// LiveConfig controls the websocket broadcast hub for operator dashboards.
type LiveConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance, loading config.yaml (or
// CONFIG_PATH) once and applying environment overrides on top.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("config: no .env file loaded", "error", err)
		}
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("DEEPTRACE_ENV", c.Server.Env)
	c.Server.Interface = getEnv("DEEPTRACE_INTERFACE", c.Server.Interface)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	c.RPC.Endpoint = getEnv("RPC_ENDPOINT", c.RPC.Endpoint)
	if v := getEnvInt("RPC_TIMEOUT_SEC", 0); v > 0 {
		c.RPC.TimeoutSec = v
	}
	if v := getEnvInt("RPC_CHAIN_ID", 0); v > 0 {
		c.RPC.ChainID = uint64(v)
	}
	c.RPC.CacheEnabled = getEnvBool("RPC_CACHE_ENABLED", c.RPC.CacheEnabled)
	if v := getEnvInt("RPC_CACHE_TTL_SEC", 0); v > 0 {
		c.RPC.CacheTTLSec = v
	}

	c.Audit.DSN = getEnv("AUDIT_DSN", c.Audit.DSN)
	if v := getEnvInt("AUDIT_RETENTION_DAYS", 0); v > 0 {
		c.Audit.RetentionDays = v
	}

	c.Snapshot.Profile = getEnv("SNAPSHOT_PROFILE", c.Snapshot.Profile)
	c.Snapshot.DBPath = getEnv("SNAPSHOT_DB_PATH", c.Snapshot.DBPath)

	if v := getEnvInt("PIPELINE_TICK_INTERVAL_MS", 0); v > 0 {
		c.Pipeline.TickIntervalMs = v
	}
	if v := getEnvInt("PIPELINE_LAG_BLOCKS", 0); v > 0 {
		c.Pipeline.LagBlocks = v
	}
	if v := getEnvInt("PIPELINE_HISTORY_WINDOW", 0); v > 0 {
		c.Pipeline.HistoryWindow = v
	}
	if v := getEnvInt("PIPELINE_MAX_ACTIVE_GROUPS", 0); v > 0 {
		c.Pipeline.MaxActiveGroups = v
	}
	c.Pipeline.LightweightSimulation = getEnvBool("PIPELINE_LIGHTWEIGHT_SIMULATION", c.Pipeline.LightweightSimulation)

	if v := getEnvInt("ATTACK_BASE_FEE_WEI", 0); v > 0 {
		c.AttackDetector.BaseFeeWei = uint64(v)
	}
	if v := getEnvInt("ATTACK_ENTROPY_TOLERANCE_WINDOW", 0); v > 0 {
		c.AttackDetector.EntropyToleranceWindow = uint64(v)
	}

	if v := getEnvInt("SIMULATION_MIN_IDLE", 0); v > 0 {
		c.Simulation.MinIdle = v
	}
	if v := getEnvInt("SIMULATION_MAX_CAPACITY", 0); v > 0 {
		c.Simulation.MaxCapacity = v
	}
	c.Simulation.Image = getEnv("SIMULATION_IMAGE", c.Simulation.Image)
	if v := getEnvInt("SIMULATION_HOST_PORT_LOW", 0); v > 0 {
		c.Simulation.HostPortLow = v
	}

	if v := getEnvInt("MEMORY_CACHE_CAPACITY", 0); v > 0 {
		c.Memory.CacheCapacity = v
	}
	c.Memory.RedisEnabled = getEnvBool("MEMORY_REDIS_ENABLED", c.Memory.RedisEnabled)
	c.Memory.RedisAddr = getEnv("MEMORY_REDIS_ADDR", c.Memory.RedisAddr)

	c.Live.ListenAddr = getEnv("LIVE_LISTEN_ADDR", c.Live.ListenAddr)
	c.Live.Path = getEnv("LIVE_PATH", c.Live.Path)

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}

	if c.RPC.TimeoutSec == 0 {
		c.RPC.TimeoutSec = 10
	}
	if c.RPC.CacheTTLSec == 0 {
		c.RPC.CacheTTLSec = 60
	}
	if c.RPC.BytecodeLRUCap == 0 {
		c.RPC.BytecodeLRUCap = 1024
	}

	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 365
	}
	if c.Audit.MaxOpenConns == 0 {
		c.Audit.MaxOpenConns = 10
	}
	if c.Audit.MaxIdleConns == 0 {
		c.Audit.MaxIdleConns = 5
	}

	if c.Snapshot.Profile == "" {
		c.Snapshot.Profile = "basic"
	}
	if c.Snapshot.DBPath == "" {
		c.Snapshot.DBPath = "./data/snapshot"
	}

	if c.Pipeline.TickIntervalMs == 0 {
		c.Pipeline.TickIntervalMs = 1000
	}
	if c.Pipeline.HistoryWindow == 0 {
		c.Pipeline.HistoryWindow = 64
	}
	if c.Pipeline.MaxActiveGroups == 0 {
		c.Pipeline.MaxActiveGroups = 1000
	}

	if c.Simulation.MinIdle == 0 {
		c.Simulation.MinIdle = 1
	}
	if c.Simulation.MaxCapacity == 0 {
		c.Simulation.MaxCapacity = 4
	}
	if c.Simulation.Image == "" {
		c.Simulation.Image = "ghcr.io/foundry-rs/foundry:latest"
	}
	if c.Simulation.HostPortLow == 0 {
		c.Simulation.HostPortLow = 18545
	}

	if c.Memory.CacheCapacity == 0 {
		c.Memory.CacheCapacity = 4096
	}
	if c.Memory.BufferPoolSize == 0 {
		c.Memory.BufferPoolSize = 256
	}
	if c.Memory.RedisKeyPrefix == "" {
		c.Memory.RedisKeyPrefix = "deeptrace:memory:"
	}
	if c.Memory.MirrorInterval == 0 {
		c.Memory.MirrorInterval = 30
	}

	if c.Live.ListenAddr == "" {
		c.Live.ListenAddr = ":8090"
	}
	if c.Live.Path == "" {
		c.Live.Path = "/live"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}

func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPC.TimeoutSec) * time.Second
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Pipeline.TickIntervalMs) * time.Millisecond
}
