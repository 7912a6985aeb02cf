package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minefield/internal/config"
	"github.com/vancomm/minefield/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	var configPath, envPath string
	flag.StringVar(&configPath, "config", "", "config file path")
	flag.StringVar(&envPath, "env", ".env", "dotenv file path")
	flag.Parse()

	loadEnv(log, envPath)

	cfg, err := config.Read(configPath)
	if err != nil {
		log.Fatal(err)
	}

	migrator, err := store.Migrate(cfg.Storage.PostgresURL())
	if err != nil {
		log.Fatal("failed to migrate database: ", err)
	}
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	if err != nil {
		log.Error("failed to check migration version: ", err)
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("migration successful")
}

// loadEnv reads envPath into the environment. A missing file is fine, any
// other failure is logged and otherwise ignored.
func loadEnv(log logrus.FieldLogger, envPath string) {
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		log.Warn("unable to load ", envPath, ": ", err)
	}
}
