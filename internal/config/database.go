package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DbName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type Storage struct {
	Driver      string         `json:"driver"`
	SQLitePath  string         `json:"sqlite_path"`
	DatabaseURL string         `json:"database_url"`
	Postgres    PostgresConfig `json:"postgres"`
}

func loadPassword() (string, error) {
	password, ok := os.LookupEnv("POSTGRES_PASSWORD")
	if ok {
		return password, nil
	}

	passwordFile, ok := os.LookupEnv("POSTGRES_PASSWORD_FILE")
	if !ok {
		return "", nil
	}

	data, err := os.ReadFile(passwordFile)
	if err != nil {
		return "", fmt.Errorf("unable to read from password file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (c PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.DbName,
		c.SSLMode,
	)
}

// PostgresURL prefers an explicit database_url over the assembled one.
func (s Storage) PostgresURL() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	return s.Postgres.URL()
}
