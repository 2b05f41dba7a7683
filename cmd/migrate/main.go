package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/trailobs/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("trailobs-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, pool, upFiles("migrations"))
	case "down":
		runMigrations(ctx, pool, downFiles("migrations"))
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// upFiles lists NNN_name.sql files in order; downFiles lists the matching
// NNN_name.down.sql files in reverse order.
func upFiles(dir string) []string {
	var files []string
	for _, f := range glob(dir) {
		if !strings.HasSuffix(f, ".down.sql") {
			files = append(files, f)
		}
	}
	return files
}

func downFiles(dir string) []string {
	var files []string
	for _, f := range glob(dir) {
		if strings.HasSuffix(f, ".down.sql") {
			files = append(files, f)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files
}

func glob(dir string) []string {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	sort.Strings(files)
	return files
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}
