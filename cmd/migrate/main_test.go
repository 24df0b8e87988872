package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckOnline(t *testing.T) {
	for _, cmd := range []string{"up", "down", "status", "redo"} {
		if err := checkOnline(options{cmd: cmd}); err != nil {
			t.Fatalf("%s: unexpected error %v", cmd, err)
		}
	}
	if err := checkOnline(options{cmd: "version"}); err == nil || !strings.Contains(err.Error(), "-version") {
		t.Fatalf("expected missing version error, got %v", err)
	}
	if err := checkOnline(options{cmd: "version", version: "20260301090000"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := checkOnline(options{cmd: "seed"}); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

func TestRunOfflineCreateAndValidate(t *testing.T) {
	dir := t.TempDir()

	handled, err := runOffline(options{cmd: "create", dir: dir})
	if !handled || err == nil {
		t.Fatalf("expected missing name error, handled=%v err=%v", handled, err)
	}

	handled, err = runOffline(options{cmd: "create", dir: dir, name: "add scrap reasons"})
	if !handled || err != nil {
		t.Fatalf("create: handled=%v err=%v", handled, err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*_add_scrap_reasons.sql"))
	if len(matches) != 1 {
		t.Fatalf("expected one migration file, got %v", matches)
	}

	handled, err = runOffline(options{cmd: "validate", dir: dir})
	if !handled || err != nil {
		t.Fatalf("validate: handled=%v err=%v", handled, err)
	}

	if handled, _ := runOffline(options{cmd: "up"}); handled {
		t.Fatalf("up needs a database")
	}
}
