// Command migrate applies database schema migrations.
//
// Usage:
//
//	migrate [-path migrations] <command>
//
// Commands:
//
//	up              apply all pending migrations
//	down            roll back one migration
//	step <n>        apply n migrations (negative rolls back)
//	version         print current schema version
//	force <v>       set version without running migrations (recover dirty state)
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"boxledger/internal/infrastructure/config"
)

func main() {
	var migrationsPath string
	flag.StringVar(&migrationsPath, "path", "migrations", "path to migrations directory")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}

	// golang-migrate routes on the URL scheme; pgx5:// selects the pgx driver.
	dsn := "pgx5" + cfg.Database.DSN()[len("postgres"):]

	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		fatalf("init migrate: %v", err)
	}
	defer m.Close()

	if err := runCommand(m, args); err != nil {
		fatalf("%s: %v", args[0], err)
	}
}

func runCommand(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return report(m.Up())
	case "down":
		return report(m.Steps(-1))
	case "step":
		if len(args) < 2 {
			return errors.New("step requires a count")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[1])
		}
		return report(m.Steps(n))
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version: %d, dirty: %v\n", version, dirty)
		return nil
	case "force":
		if len(args) < 2 {
			return errors.New("force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		return m.Force(v)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func report(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no change")
		return nil
	}
	if err == nil {
		fmt.Println("ok")
	}
	return err
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: migrate [-path migrations] <command>

commands:
  up              apply all pending migrations
  down            roll back one migration
  step <n>        apply n migrations (negative rolls back)
  version         print current schema version
  force <v>       set version without running migrations`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
