package config

import (
	"fmt"
	"os"
	"time"

	"github.com/quellsec/quell/types"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the action orchestrator. Every field has a
// working default so the binary runs with no config file at all.
type Config struct {
	// BaseDir is where status tokens, reports, snapshots, journals and the
	// history database live.
	BaseDir string `yaml:"base_dir"`
	// LogDir is where per-run log files are written.
	LogDir string `yaml:"log_dir"`

	// ManagementPort stays reachable after isolation.
	ManagementPort int `yaml:"management_port"`

	// CommandTimeout bounds every external command invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// ShutdownDelay is the emergency shutdown countdown length.
	ShutdownDelay time.Duration `yaml:"shutdown_delay"`

	// IsolateServices are stopped and disabled before firewall isolation.
	IsolateServices []types.ServiceDescriptor `yaml:"isolate_services"`
	// PatchRestartServices are restarted after patching.
	PatchRestartServices []types.ServiceDescriptor `yaml:"patch_restart_services"`
	// ShutdownStopServices are stopped before the halt.
	ShutdownStopServices []types.ServiceDescriptor `yaml:"shutdown_stop_services"`
	// CriticalServices are surveyed by the status check.
	CriticalServices []string `yaml:"critical_services"`

	// SuspiciousProcesses are process names flagged by the security survey.
	SuspiciousProcesses []string `yaml:"suspicious_processes"`

	Thresholds Thresholds `yaml:"thresholds"`
}

// Thresholds drive the status check recommendations.
type Thresholds struct {
	LoadHigh    float64 `yaml:"load_high"`
	DiskPercent int     `yaml:"disk_percent"`
	MemPercent  int     `yaml:"mem_percent"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseDir:        "/tmp/quell",
		LogDir:         "/tmp/quell/logs",
		ManagementPort: 22,
		CommandTimeout: 5 * time.Minute,
		ShutdownDelay:  60 * time.Second,
		IsolateServices: []types.ServiceDescriptor{
			{Name: "apache2", DesiredState: types.StateStopped},
			{Name: "nginx", DesiredState: types.StateStopped},
			{Name: "apache2", DesiredState: types.StateDisabled},
			{Name: "nginx", DesiredState: types.StateDisabled},
		},
		PatchRestartServices: []types.ServiceDescriptor{
			{Name: "apache2", DesiredState: types.StateRestarted},
			{Name: "nginx", DesiredState: types.StateRestarted},
		},
		ShutdownStopServices: []types.ServiceDescriptor{
			{Name: "apache2", DesiredState: types.StateStopped},
			{Name: "nginx", DesiredState: types.StateStopped},
			{Name: "mysql", DesiredState: types.StateStopped},
			{Name: "postgresql", DesiredState: types.StateStopped},
		},
		CriticalServices: []string{"sshd", "apache2", "nginx", "mysql", "postgresql"},
		SuspiciousProcesses: []string{
			"nc", "ncat", "socat", "cryptominer", "xmrig", "kworkerds",
		},
		Thresholds: Thresholds{
			LoadHigh:    2.0,
			DiskPercent: 90,
			MemPercent:  90,
		},
	}
}

// Load reads configuration from a YAML file, filling in defaults for any
// field left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config values are usable.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	if c.ManagementPort <= 0 || c.ManagementPort > 65535 {
		return fmt.Errorf("management_port %d out of range", c.ManagementPort)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	if c.ShutdownDelay < 0 {
		return fmt.Errorf("shutdown_delay cannot be negative")
	}
	for _, list := range [][]types.ServiceDescriptor{
		c.IsolateServices, c.PatchRestartServices, c.ShutdownStopServices,
	} {
		for _, d := range list {
			if err := d.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
