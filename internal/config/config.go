// Package config loads the optional inslaunch settings file.
//
// The file is TOML and every key is optional:
//
//	share_dir    = "/opt/ros/humble/share/microstrain_ros_examples"
//	variant      = "cv7_ins_ublox_f9p"
//	docker_image = "ghcr.io/example/cv7-ins:humble"
//	state_dir    = "/var/lib/inslaunch"
//
//	[log]
//	level       = "debug"
//	file        = "/var/log/inslaunch.log"
//	max_size_mb = 10
//	max_backups = 3
//	no_color    = true
//
// Keys that are absent keep their defaults; only keys present in the file
// override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/inslaunch/inslaunch/internal/launch"
	"github.com/inslaunch/inslaunch/internal/logging"
)

// Environment variables consulted when resolving paths.
const (
	EnvShareDir      = "INSLAUNCH_SHARE_DIR"
	EnvAmentPrefix   = "AMENT_PREFIX_PATH"
	EnvXDGConfigHome = "XDG_CONFIG_HOME"
	EnvXDGStateHome  = "XDG_STATE_HOME"
)

const (
	DefaultROSPrefix   = "/opt/ros/humble"
	DefaultDockerImage = "ros:humble"

	configDirName  = "inslaunch"
	configFileName = "config.toml"
)

// Config holds the resolved settings.
type Config struct {
	ShareDir    string
	Variant     string
	DockerImage string
	StateDir    string
	Log         logging.Config
}

type fileConfig struct {
	ShareDir    string  `toml:"share_dir"`
	Variant     string  `toml:"variant"`
	DockerImage string  `toml:"docker_image"`
	StateDir    string  `toml:"state_dir"`
	Log         fileLog `toml:"log"`
}

type fileLog struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	NoColor    bool   `toml:"no_color"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Variant:     launch.DefaultVariant,
		DockerImage: DefaultDockerImage,
		Log: logging.Config{
			Level:      "info",
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/inslaunch/config.toml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	base := getenv(EnvXDGConfigHome)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, configDirName, configFileName)
}

// Load reads path on top of Default. An explicit path that does not exist
// is an error; the default path is allowed to be missing.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("share_dir") {
		cfg.ShareDir = strings.TrimSpace(raw.ShareDir)
	}
	if meta.IsDefined("variant") {
		cfg.Variant = strings.TrimSpace(raw.Variant)
	}
	if meta.IsDefined("docker_image") {
		cfg.DockerImage = strings.TrimSpace(raw.DockerImage)
	}
	if meta.IsDefined("state_dir") {
		cfg.StateDir = strings.TrimSpace(raw.StateDir)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	return cfg, nil
}

// ResolveShareDir picks the share directory of launch.PackageName:
//  1. configured (flag or file) value
//  2. $INSLAUNCH_SHARE_DIR
//  3. first entry of $AMENT_PREFIX_PATH + /share/<package>
//  4. /opt/ros/humble/share/<package>
func ResolveShareDir(configured string, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if configured != "" {
		return configured
	}
	if v := getenv(EnvShareDir); v != "" {
		return v
	}
	if prefixes := getenv(EnvAmentPrefix); prefixes != "" {
		first := strings.Split(prefixes, string(os.PathListSeparator))[0]
		if first != "" {
			return filepath.Join(first, "share", launch.PackageName)
		}
	}
	return filepath.Join(DefaultROSPrefix, "share", launch.PackageName)
}

// ResolveStateDir picks where rendered parameter files for launched plans
// are kept: configured value, then $XDG_STATE_HOME/inslaunch, then
// ~/.local/state/inslaunch.
func ResolveStateDir(configured string, getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if configured != "" {
		return configured, nil
	}
	if v := getenv(EnvXDGStateHome); v != "" {
		return filepath.Join(v, configDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve state directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", configDirName), nil
}
