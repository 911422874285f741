package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		ListenAddr  string `yaml:"listen_addr"`
		MaxUploadMB int    `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Defaults struct {
		ResizePct   int  `yaml:"resize_pct"`
		JPEGQuality int  `yaml:"jpeg_quality"`
		MaxSide     int  `yaml:"max_side"`
		Downscale   bool `yaml:"downscale"`
	} `yaml:"defaults"`
	Cache struct {
		TTLHours  float64 `yaml:"ttl_hours"`
		KeyPrefix string  `yaml:"key_prefix"`
	} `yaml:"cache"`
	Remote struct {
		PollIntervalSeconds float64 `yaml:"poll_interval_seconds"`
	} `yaml:"remote"`
}

func defaults() *Config {
	config := &Config{}
	config.Server.ListenAddr = ":3002"
	config.Server.MaxUploadMB = 100
	config.Defaults.ResizePct = 50
	config.Defaults.JPEGQuality = 70
	config.Defaults.MaxSide = 2048
	config.Defaults.Downscale = true
	config.Cache.TTLHours = 24
	config.Cache.KeyPrefix = "slimfile"
	config.Remote.PollIntervalSeconds = 2
	return config
}

func LoadConfig(path string) (*Config, error) {
	config := defaults()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Unmarshal over the defaults so a partial file keeps the rest.
	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
