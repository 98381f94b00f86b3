package main

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"

	appmigrations "github.com/dheysonavelleda/radiestesia-agendamento/migrations"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
	calls   []string
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, nil }

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	if err := run(m, nil); err != nil {
		t.Fatalf("expected no change to be ignored, got %v", err)
	}
	if len(m.calls) != 1 {
		t.Fatalf("expected one up call, got %v", m.calls)
	}
}

func TestRunCommands(t *testing.T) {
	m := &fakeMigrator{}
	if err := run(m, []string{"down"}); err != nil || len(m.steps) != 1 || m.steps[0] != -1 {
		t.Fatalf("expected one step down, got %v err=%v", m.steps, err)
	}
	if err := run(m, []string{"force", "1"}); err != nil || m.forced != 1 {
		t.Fatalf("expected force 1, got %d err=%v", m.forced, err)
	}
	if err := run(m, []string{"force", "x"}); err == nil {
		t.Fatalf("expected invalid version error")
	}
	if err := run(m, []string{"sideways"}); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if err := run(&fakeMigrator{upErr: errors.New("dirty")}, []string{"up"}); err == nil {
		t.Fatalf("expected up failure to surface")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(appmigrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	ups, downs := 0, 0
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups++
		case strings.HasSuffix(f, ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got %d up and %d down", ups, downs)
	}

	schema, err := fs.ReadFile(appmigrations.FS, "000001_init.up.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	if !strings.Contains(string(schema), "WHERE status <> 'CANCELLED'") {
		t.Fatalf("expected partial unique index on active start times")
	}
}
