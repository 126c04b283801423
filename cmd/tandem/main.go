package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"tandem/internal/auth"
	"tandem/internal/config"
	"tandem/internal/database"
	"tandem/internal/project"
	"tandem/internal/server"
	"tandem/internal/session"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

func main() {
	versionFlag := flag.Bool("version", false, "Print the version of the program")
	configFlag := flag.String("config", defaultConfigPath(), "Path to config file")
	logfileFlag := flag.String("logfile", "", "Path to log file (overrides config)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("tandem server version %s\n", Version)
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *logfileFlag != "" {
		cfg.LogFile = *logfileFlag
	}

	// Set up logging
	if cfg.LogFile != "" {
		commonlog.Configure(1, &cfg.LogFile)
	} else {
		commonlog.Configure(1, nil)
	}
	logger := commonlog.GetLogger("tandem")

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(session.NewRegistry(), auth.NewService(db), project.NewService(db))
	go srv.Run()
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Shut down cleanly on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		httpServer.Close()
	}()

	logger.Infof("tandem %s listening on %s", Version, cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tandem.json"
	}
	return filepath.Join(home, ".tandem", "config.json")
}
