package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	LogLevel       string   `yaml:"log-level"       env:"LOG_LEVEL"       env-default:"info"`
	HTTPPort       string   `yaml:"http-port"       env:"HTTP_PORT"       env-default:"9090"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-default:"*"`
	Storage        Storage  `yaml:"storage"`
	Relay          Relay    `yaml:"relay"`
}

type Storage struct {
	Driver        string        `yaml:"driver"         env:"STORAGE_DRIVER" env-default:"redis"`
	URL           string        `yaml:"url"            env:"STORAGE_URL"`
	RoomTTL       time.Duration `yaml:"room-ttl"       env:"ROOM_TTL"       env-default:"168h"`
	SweepInterval time.Duration `yaml:"sweep-interval" env:"SWEEP_INTERVAL" env-default:"1m"`
}

type Relay struct {
	// full-state messages are written to the snapshot store before fan-out unless disabled.
	DisablePersist bool `yaml:"disable-persist" env:"RELAY_DISABLE_PERSIST"`
	SendBuffer     int  `yaml:"send-buffer"     env:"RELAY_SEND_BUFFER"     env-default:"256"`
}

// MustLoad - load configuration from the yml file at path, or from the environment when the file is absent.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err = cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("unable to load config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to load config from environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("unable to stat config file: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

var (
	ErrUnknownDriver  = errors.New("unknown storage driver")
	ErrInvalidRoomTTL = errors.New("room ttl must be positive")
)

func (that *Config) validate() error {
	switch that.Storage.Driver {
	case DriverRedis, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownDriver, that.Storage.Driver)
	}

	if that.Storage.RoomTTL <= 0 {
		return ErrInvalidRoomTTL
	}

	if that.Relay.SendBuffer <= 0 {
		that.Relay.SendBuffer = 1
	}

	return nil
}

// IsDurable - whether a durable backend is configured at all.
func (that *Storage) IsDurable() bool {
	return that.Driver != DriverMemory && that.URL != ""
}
