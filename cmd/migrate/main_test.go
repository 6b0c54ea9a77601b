package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	cases := []struct {
		name    string
		want    int64
		wantErr bool
	}{
		{"001_tangle_transactions.up.sql", 1, false},
		{"012_index.down.sql", 12, false},
		{"init.sql", 0, true},
		{"abc_init.up.sql", 0, true},
	}
	for _, tc := range cases {
		got, err := versionFromFile(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestLoadMigrations_pairsAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"002_b.up.sql", "002_b.down.sql",
		"001_a.up.sql", "001_a.down.sql",
		"003_c.up.sql",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := loadMigrations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].version != want {
			t.Errorf("migration %d: version %d, want %d", i, got[i].version, want)
		}
	}
	if got[0].up != "001_a.up.sql" || got[0].down != "001_a.down.sql" {
		t.Errorf("pairing: got %+v", got[0])
	}
	if got[2].down != "" {
		t.Errorf("003 has no down file, got %q", got[2].down)
	}
}
