package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"002_b.sql", "001_a.sql", "001_a.down.sql", "002_b.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	up := upFiles(dir)
	wantUp := []string{filepath.Join(dir, "001_a.sql"), filepath.Join(dir, "002_b.sql")}
	if !reflect.DeepEqual(up, wantUp) {
		t.Errorf("up = %v, want %v", up, wantUp)
	}

	down := downFiles(dir)
	wantDown := []string{filepath.Join(dir, "002_b.down.sql"), filepath.Join(dir, "001_a.down.sql")}
	if !reflect.DeepEqual(down, wantDown) {
		t.Errorf("down = %v, want %v", down, wantDown)
	}
}
