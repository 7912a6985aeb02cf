package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"
	"golang.org/x/sync/errgroup"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/config"
	"github.com/vancomm/minefield/internal/mines"
	"github.com/vancomm/minefield/internal/server"
	"github.com/vancomm/minefield/internal/store"
)

var (
	log = logrus.New()

	configPath string
	envPath    string
)

func init() {
	const usage = "config file path"
	flag.StringVar(&configPath, "config", "", usage)
	flag.StringVar(&configPath, "c", "", usage+" (shorthand)")
	flag.StringVar(&envPath, "env", ".env", "dotenv file to load if present")
}

// setupLogging points every package logger at the same level, formatter and
// hooks.
func setupLogging(cfg *config.Config) {
	logLevel := logrus.InfoLevel
	if cfg.Development() {
		logLevel = logrus.DebugLevel
	}

	var hook logrus.Hook
	if cfg.LogFile != "" {
		var err error
		hook, err = rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
			Level:      logLevel,
			Formatter:  &logrus.JSONFormatter{TimestampFormat: time.RFC3339},
		})
		if err != nil {
			log.Fatal("unable to open log file: ", err)
		}
	}

	for _, l := range []*logrus.Logger{log, mines.Log, auth.Log, store.Log, server.Log} {
		l.SetLevel(logLevel)
		l.SetFormatter(&logrus.TextFormatter{ForceColors: cfg.Development()})
		if hook != nil {
			l.AddHook(hook)
		}
	}
}

func main() {
	mainCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	flag.Parse()

	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		log.Warn("unable to load ", envPath, ": ", err)
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		log.Fatal(err)
	}

	setupLogging(cfg)

	log.Info("starting up, mode = ", cfg.Mode)
	log.WithFields(cfg.Fields()).Debug("config")

	jwt, err := auth.LoadJWT(cfg.Jwt, cfg.Development())
	if err != nil {
		log.Fatal("unable to load JWT keys: ", err)
	}
	cookies := auth.NewCookies(cfg.Cookies, jwt, cfg.Production())

	st, err := store.Open(mainCtx, cfg.Storage)
	if err != nil {
		log.Fatal("unable to open store: ", err)
	}
	defer st.Close()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(cfg, st, cookies).Handler(),
		BaseContext: func(l net.Listener) context.Context {
			return mainCtx
		},
	}

	log.Infof("ready to serve @ %s", cfg.Addr)

	g, gCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		log.Printf("exit reason: %s\n", err)
	}
}
