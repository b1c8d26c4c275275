package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General  GeneralConfig  `toml:"general"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Planner  PlannerConfig  `toml:"planner"`
	GPU      GPUConfig      `toml:"gpu"`
	Backend  BackendConfig  `toml:"backend"`
	History  HistoryConfig  `toml:"history"`
	Logging  LoggingConfig  `toml:"logging"`
}

type GeneralConfig struct {
	DataDir string `toml:"data_dir"`
}

// PipelineConfig controls the automation pipeline itself.
type PipelineConfig struct {
	// Enabled gates the whole pipeline; a run is rejected when false.
	Enabled bool `toml:"enabled"`
	// WaitForGPU gates generation on GPU readiness thresholds.
	WaitForGPU bool `toml:"wait_for_gpu"`
	// AutoStartBackend starts the render backend if it is not running.
	// When false an unresponsive backend fails the run instead.
	AutoStartBackend bool `toml:"auto_start_backend"`
	// AutoTrigger invokes image generation at the end of the pipeline.
	// When false the run completes as "ready for manual generation".
	AutoTrigger bool `toml:"auto_trigger"`
	// MaxWait bounds the wait for derived prompts to appear.
	MaxWait  string        `toml:"max_wait"`
	MaxWaitD time.Duration `toml:"-"`
	// PollInterval is the delay between prompt-readiness probes.
	PollInterval  string        `toml:"poll_interval"`
	PollIntervalD time.Duration `toml:"-"`
}

type PlannerConfig struct {
	BaseURL         string        `toml:"base_url"`
	RequestTimeout  string        `toml:"request_timeout"`
	RequestTimeoutD time.Duration `toml:"-"`
	// NotifyInterval is the cadence of the out-of-band readiness listener.
	NotifyInterval  string        `toml:"notify_interval"`
	NotifyIntervalD time.Duration `toml:"-"`
}

type GPUConfig struct {
	// SMIPath overrides the nvidia-smi binary location.
	SMIPath string `toml:"smi_path"`
	// DeviceIndex selects the GPU when more than one is present.
	DeviceIndex int `toml:"device_index"`
}

type BackendConfig struct {
	// ContainerName is the docker container running the render backend.
	ContainerName string `toml:"container_name"`
	// Image is pulled and started when auto-start is enabled and the
	// container does not exist yet.
	Image string `toml:"image"`
	// Port is the host port the backend listens on.
	Port int `toml:"port"`
	// HealthURL is probed to decide whether the backend is responsive.
	HealthURL string `toml:"health_url"`
	// StartTimeout bounds how long EnsureRunning waits for the backend
	// to come up after starting the container.
	StartTimeout  string        `toml:"start_timeout"`
	StartTimeoutD time.Duration `toml:"-"`
	// UseGPU passes the GPU through to the container.
	UseGPU bool `toml:"use_gpu"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".renderpilot")

	return &Config{
		General: GeneralConfig{
			DataDir: dataDir,
		},
		Pipeline: PipelineConfig{
			Enabled:          true,
			WaitForGPU:       true,
			AutoStartBackend: true,
			AutoTrigger:      true,
			MaxWait:          "10m",
			PollInterval:     "10s",
		},
		Planner: PlannerConfig{
			BaseURL:        "http://localhost:8787",
			RequestTimeout: "30s",
			NotifyInterval: "30s",
		},
		GPU: GPUConfig{
			SMIPath:     "",
			DeviceIndex: 0,
		},
		Backend: BackendConfig{
			ContainerName: "renderpilot-comfyui",
			Image:         "ghcr.io/comfyanonymous/comfyui:latest",
			Port:          8188,
			HealthURL:     "http://localhost:8188/system_stats",
			StartTimeout:  "2m",
			UseGPU:        true,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(dataDir, "history.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Pipeline.MaxWaitD, err = time.ParseDuration(c.Pipeline.MaxWait); err != nil {
		return fmt.Errorf("parse pipeline.max_wait: %w", err)
	}

	if c.Pipeline.PollIntervalD, err = time.ParseDuration(c.Pipeline.PollInterval); err != nil {
		return fmt.Errorf("parse pipeline.poll_interval: %w", err)
	}

	if c.Planner.RequestTimeoutD, err = time.ParseDuration(c.Planner.RequestTimeout); err != nil {
		return fmt.Errorf("parse planner.request_timeout: %w", err)
	}

	if c.Planner.NotifyIntervalD, err = time.ParseDuration(c.Planner.NotifyInterval); err != nil {
		return fmt.Errorf("parse planner.notify_interval: %w", err)
	}

	if c.Backend.StartTimeoutD, err = time.ParseDuration(c.Backend.StartTimeout); err != nil {
		return fmt.Errorf("parse backend.start_timeout: %w", err)
	}

	c.General.DataDir, err = expandPath(c.General.DataDir)
	if err != nil {
		return fmt.Errorf("expand general.data_dir: %w", err)
	}

	c.History.DBPath, err = expandPath(c.History.DBPath)
	if err != nil {
		return fmt.Errorf("expand history.db_path: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Pipeline.MaxWaitD <= 0 {
		return fmt.Errorf("pipeline.max_wait must be positive, got %s", c.Pipeline.MaxWait)
	}

	if c.Pipeline.PollIntervalD <= 0 {
		return fmt.Errorf("pipeline.poll_interval must be positive, got %s", c.Pipeline.PollInterval)
	}

	if c.Planner.BaseURL == "" {
		return fmt.Errorf("planner.base_url is required")
	}

	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port must be between 1 and 65535, got %d", c.Backend.Port)
	}

	if c.GPU.DeviceIndex < 0 {
		return fmt.Errorf("gpu.device_index cannot be negative, got %d", c.GPU.DeviceIndex)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RENDERPILOT_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("RENDERPILOT_PLANNER_URL"); v != "" {
		cfg.Planner.BaseURL = v
	}
	if v := os.Getenv("RENDERPILOT_BACKEND_HEALTH_URL"); v != "" {
		cfg.Backend.HealthURL = v
	}
	if v := os.Getenv("RENDERPILOT_BACKEND_CONTAINER"); v != "" {
		cfg.Backend.ContainerName = v
	}
	if v := os.Getenv("RENDERPILOT_SMI_PATH"); v != "" {
		cfg.GPU.SMIPath = v
	}
	if v := os.Getenv("RENDERPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RENDERPILOT_ENABLED"); v != "" {
		cfg.Pipeline.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("RENDERPILOT_HISTORY_DB"); v != "" {
		cfg.History.DBPath = v
	}
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
