// Package config loads the player configuration from a YAML file, a .env
// file and KARAPLAYER_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/genricoloni/karaplayer/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix  = "KARAPLAYER"
	configName = "player"
	appDir     = "karaplayer"
)

// Config is the whole configuration surface
type Config struct {
	Player Player
	Server Server
	Log    logging.Config
}

// Player configures playback
type Player struct {
	Backend        string
	Fullscreen     bool
	KaraFolder     string
	ResourcesDir   string
	RuntimeDir     string
	FitBackgrounds bool

	Mpv         Mpv
	Vlc         Vlc
	Templates   Screens
	Backgrounds Screens
	Durations   Durations
}

// Mpv holds mpv specific settings
type Mpv struct {
	Binary  string
	Options map[string]string
}

// Vlc holds libVLC parameters
type Vlc struct {
	InstanceParameters []string
	MediaParameters    []string
}

// Screens name a custom resource per screen
type Screens struct {
	Transition string
	Idle       string
}

// Durations tune the state machine
type Durations struct {
	Transition        time.Duration
	RewindFastForward float64
}

// Server configures the command channel
type Server struct {
	Address           string
	WebsocketEndpoint string
	Login             string
	Password          string
	Token             string
	ReconnectInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("player.backend", "mpv")
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.kara_folder", "")
	v.SetDefault("player.resources_dir", filepath.Join(userConfigDir(), "resources"))
	v.SetDefault("player.runtime_dir", filepath.Join(os.TempDir(), appDir))
	v.SetDefault("player.fit_backgrounds", true)
	v.SetDefault("player.mpv.binary", "mpv")
	v.SetDefault("player.mpv.options", map[string]string{})
	v.SetDefault("player.vlc.instance_parameters", []string{})
	v.SetDefault("player.vlc.media_parameters", []string{})
	v.SetDefault("player.templates.transition", "")
	v.SetDefault("player.templates.idle", "")
	v.SetDefault("player.backgrounds.transition", "")
	v.SetDefault("player.backgrounds.idle", "")
	v.SetDefault("player.durations.transition", 2*time.Second)
	v.SetDefault("player.durations.rewind_fast_forward", 10.0)

	v.SetDefault("server.address", "http://127.0.0.1:8000")
	v.SetDefault("server.websocket_endpoint", "ws/playlist/device/")
	v.SetDefault("server.login", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.token", "")
	v.SetDefault("server.reconnect_interval", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", filepath.Join(userConfigDir(), "logs", "karaplayer.log"))
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, appDir)
}

// Load reads the configuration. The .env file and the YAML file are both
// optional; environment variables win over the file.
func Load() (*Config, error) {
	// missing .env is the normal case
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv(envPrefix + "_CONFIG"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(userConfigDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Player: Player{
			Backend:        strings.ToLower(v.GetString("player.backend")),
			Fullscreen:     v.GetBool("player.fullscreen"),
			KaraFolder:     expandPath(v.GetString("player.kara_folder")),
			ResourcesDir:   expandPath(v.GetString("player.resources_dir")),
			RuntimeDir:     expandPath(v.GetString("player.runtime_dir")),
			FitBackgrounds: v.GetBool("player.fit_backgrounds"),
			Mpv: Mpv{
				Binary:  v.GetString("player.mpv.binary"),
				Options: v.GetStringMapString("player.mpv.options"),
			},
			Vlc: Vlc{
				InstanceParameters: v.GetStringSlice("player.vlc.instance_parameters"),
				MediaParameters:    v.GetStringSlice("player.vlc.media_parameters"),
			},
			Templates: Screens{
				Transition: v.GetString("player.templates.transition"),
				Idle:       v.GetString("player.templates.idle"),
			},
			Backgrounds: Screens{
				Transition: v.GetString("player.backgrounds.transition"),
				Idle:       v.GetString("player.backgrounds.idle"),
			},
			Durations: Durations{
				Transition:        v.GetDuration("player.durations.transition"),
				RewindFastForward: v.GetFloat64("player.durations.rewind_fast_forward"),
			},
		},
		Server: Server{
			Address:           v.GetString("server.address"),
			WebsocketEndpoint: v.GetString("server.websocket_endpoint"),
			Login:             v.GetString("server.login"),
			Password:          v.GetString("server.password"),
			Token:             v.GetString("server.token"),
			ReconnectInterval: v.GetDuration("server.reconnect_interval"),
		},
		Log: logging.Config{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			FilePath:   expandPath(v.GetString("log.file")),
			MaxSize:    v.GetInt("log.max_size"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAge:     v.GetInt("log.max_age"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	switch c.Player.Backend {
	case "mpv", "vlc":
	default:
		return fmt.Errorf("unknown backend %q, expected mpv or vlc", c.Player.Backend)
	}
	if c.Player.Durations.Transition <= 0 {
		return fmt.Errorf("transition duration must be positive, got %s", c.Player.Durations.Transition)
	}
	if c.Player.Durations.RewindFastForward <= 0 {
		return fmt.Errorf("rewind/fast-forward step must be positive, got %v", c.Player.Durations.RewindFastForward)
	}
	if c.Server.Address == "" {
		return errors.New("server address is required")
	}
	if c.Server.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive, got %s", c.Server.ReconnectInterval)
	}
	return nil
}

// MpvMediaOptions flattens the mpv option map into sorted key=value pairs
func (c *Config) MpvMediaOptions() []string {
	keys := make([]string, 0, len(c.Player.Mpv.Options))
	for k := range c.Player.Mpv.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, k+"="+c.Player.Mpv.Options[k])
	}
	return opts
}

// Fields summarises the configuration for the startup log
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("backend", c.Player.Backend),
		zap.Bool("fullscreen", c.Player.Fullscreen),
		zap.String("karaFolder", c.Player.KaraFolder),
		zap.String("resourcesDir", c.Player.ResourcesDir),
		zap.String("server", c.Server.Address),
		zap.Bool("token", c.Server.Token != ""),
	}
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
