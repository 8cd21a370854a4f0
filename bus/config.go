package bus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the persisted bus setup: client identity, scan behavior,
// timing defaults and the per-port settings saved last session.
type Config struct {
	Client       string `yaml:"client"`
	Manual       bool   `yaml:"manual-ports"`
	InitDisabled bool   `yaml:"init-disabled"`
	VirtualIns   int    `yaml:"virtual-ins"`
	VirtualOuts  int    `yaml:"virtual-outs"`
	PortNaming   string `yaml:"port-naming"`

	PPQN     int     `yaml:"ppqn"`
	BPM      float64 `yaml:"bpm"`
	ClockMod int     `yaml:"clock-mod"`

	RecordByBuss    bool `yaml:"record-by-buss"`
	RecordByChannel bool `yaml:"record-by-channel"`

	Clocks ClocksList `yaml:"clocks"`
	Inputs InputsList `yaml:"inputs"`
}

func DefaultConfig() Config {
	return Config{
		Client:      "midibus",
		VirtualIns:  1,
		VirtualOuts: 1,
		PortNaming:  "brief",
		PPQN:        DefaultPPQN,
		BPM:         DefaultBPM,
		ClockMod:    DefaultClockMod,
	}
}

// LoadConfig reads a YAML config, filling anything missing with
// defaults. The returned Config is usable even on error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.sanitize()
	return cfg, nil
}

// Save writes the config back as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Naming is the parsed port-naming style.
func (c Config) Naming() PortNaming { return ParsePortNaming(c.PortNaming) }

func (c *Config) sanitize() {
	if c.Client == "" {
		c.Client = "midibus"
	}
	c.PPQN = normalizePPQN(c.PPQN)
	if c.BPM <= 0 {
		c.BPM = DefaultBPM
	}
	if c.ClockMod == 0 {
		c.ClockMod = DefaultClockMod
	}
	if c.VirtualIns < 0 {
		c.VirtualIns = 0
	}
	if c.VirtualOuts < 0 {
		c.VirtualOuts = 0
	}
}

// ParsePortNaming maps a config string to a naming style; anything
// unrecognized reads as brief. "long" is accepted for full.
func ParsePortNaming(s string) PortNaming {
	switch s {
	case "pair":
		return NamingPair
	case "full", "long":
		return NamingFull
	}
	return NamingBrief
}
