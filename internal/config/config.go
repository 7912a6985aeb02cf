package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vancomm/minefield/internal/mines"
)

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"

	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Duration struct{ time.Duration }

// [Duration] implements [json.Marshaler]
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil

	default:
		return errors.New("invalid duration")
	}
}

type JwtConfig struct {
	TokenLifetime  Duration `json:"token_lifetime"`
	PrivateKeyPath string   `json:"private_key_path"`
	PublicKeyPath  string   `json:"public_key_path"`
}

type CookiesConfig struct {
	Domain string `json:"domain"`
}

type GameConfig struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	MineCount int `json:"mine_count"`
	MaxCells  int `json:"max_cells"`
}

func (g GameConfig) Params() mines.GameParams {
	return mines.GameParams{Width: g.Width, Height: g.Height, MineCount: g.MineCount}
}

type Config struct {
	Mode    string        `json:"mode"`
	Addr    string        `json:"addr"`
	LogFile string        `json:"log_file"`
	Storage Storage       `json:"storage"`
	Jwt     JwtConfig     `json:"jwt"`
	Cookies CookiesConfig `json:"cookies"`
	Game    GameConfig    `json:"game"`
}

// Default is a development setup with in-memory storage and the classic
// beginner board.
func Default() *Config {
	return &Config{
		Mode: ModeDevelopment,
		Addr: "localhost:8000",
		Storage: Storage{
			Driver:     DriverMemory,
			SQLitePath: "minefield.db",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Jwt: JwtConfig{
			TokenLifetime: Duration{time.Hour * 24 * 30},
		},
		Game: GameConfig{Width: 9, Height: 9, MineCount: 10, MaxCells: 30 * 24},
	}
}

// Read layers the JSON file at path over [Default] and applies environment
// overrides. An empty path skips the file.
func Read(path string) (*Config, error) {
	config := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config %s: %w", path, err)
		}
		if err := json.Unmarshal(b, config); err != nil {
			return nil, fmt.Errorf("unable to parse config %s: %w", path, err)
		}
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields with the environment variables that are set.
func (c *Config) ApplyEnv() error {
	vars := map[string]*string{
		"APP_MODE":             &c.Mode,
		"APP_ADDR":             &c.Addr,
		"LOG_FILE":             &c.LogFile,
		"STORAGE_DRIVER":       &c.Storage.Driver,
		"SQLITE_PATH":          &c.Storage.SQLitePath,
		"DATABASE_URL":         &c.Storage.DatabaseURL,
		"POSTGRES_HOST":        &c.Storage.Postgres.Host,
		"POSTGRES_USER":        &c.Storage.Postgres.User,
		"POSTGRES_DB":          &c.Storage.Postgres.DbName,
		"POSTGRES_SSLMODE":     &c.Storage.Postgres.SSLMode,
		"JWT_PRIVATE_KEY_FILE": &c.Jwt.PrivateKeyPath,
		"JWT_PUBLIC_KEY_FILE":  &c.Jwt.PublicKeyPath,
		"COOKIES_DOMAIN":       &c.Cookies.Domain,
	}
	for key, field := range vars {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}

	if portStr, ok := os.LookupEnv("POSTGRES_PORT"); ok {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("unable to convert port to int: %w", err)
		}
		c.Storage.Postgres.Port = uint16(port)
	}

	password, err := loadPassword()
	if err != nil {
		return fmt.Errorf("unable to load password: %w", err)
	}
	if password != "" {
		c.Storage.Postgres.Password = password
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if err := c.Game.Params().Validate(); err != nil {
		return fmt.Errorf("invalid default game: %w", err)
	}
	if c.Jwt.TokenLifetime.Duration <= 0 {
		return fmt.Errorf("token_lifetime must be positive, got %s", c.Jwt.TokenLifetime)
	}
	if c.Game.MaxCells < c.Game.Width*c.Game.Height {
		return fmt.Errorf(
			"max_cells %d is smaller than the default board", c.Game.MaxCells,
		)
	}
	return nil
}

func (c Config) Fields() logrus.Fields {
	return map[string]any{
		"mode":                 c.Mode,
		"addr":                 c.Addr,
		"log_file":             c.LogFile,
		"storage_driver":       c.Storage.Driver,
		"sqlite_path":          c.Storage.SQLitePath,
		"pg_host":              c.Storage.Postgres.Host,
		"pg_port":              c.Storage.Postgres.Port,
		"pg_user":              c.Storage.Postgres.User,
		"pg_db_name":           c.Storage.Postgres.DbName,
		"jwt_token_lifetime":   c.Jwt.TokenLifetime.Duration.String(),
		"jwt_private_key_path": c.Jwt.PrivateKeyPath,
		"jwt_public_key_path":  c.Jwt.PublicKeyPath,
		"cookies_domain":       c.Cookies.Domain,
		"game":                 c.Game.Params().Seed(),
	}
}

func (c Config) Production() bool {
	return c.Mode == ModeProduction
}

func (c Config) Development() bool {
	return c.Mode != ModeProduction
}
