package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrations()
	if err != nil {
		log.Fatal("locate migrations", zap.Error(err))
	}

	m, err := migrate.New("file://"+migrationsPath, dbUrl)
	if err != nil {
		log.Fatal("open migrations", zap.Error(err))
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate steps <n>")
		}
		n, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			log.Fatal("invalid step count", zap.Error(convErr))
		}
		err = m.Steps(n)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatal("read version", zap.Error(verr))
		}
		log.Info("migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return
	default:
		log.Fatal("unknown command", zap.String("command", cmd))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}
	log.Info("migration successful", zap.String("command", cmd), zap.String("path", migrationsPath))
}

// findMigrations looks for a migrations directory above the working
// directory, then next to the executable.
func findMigrations() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	candidates := []string{}
	current := cwd
	for i := 0; i < 6; i++ {
		candidates = append(candidates, filepath.Join(current, "migrations"))
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
			filepath.Join(exeDir, "..", "..", "migrations"),
		)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}
