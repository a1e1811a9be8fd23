package db

import (
	"strings"
	"testing"
)

func TestMigrateUp_Idempotent(t *testing.T) {
	conn, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := MigrateUp(conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := MigrateUp(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}

	statuses, err := MigrateStatus(conn)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %s not applied after MigrateUp", s.ID)
		}
		if s.Checksum == "" || s.AppliedAt == nil {
			t.Errorf("migration %s missing bookkeeping: %+v", s.ID, s)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	conn, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := MigrateUp(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := conn.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	err = MigrateUp(conn)
	if err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("expected checksum validation failure, got %v", err)
	}
}

func TestMigrateUp_UnsupportedDriver(t *testing.T) {
	if _, _, err := migrationSource("mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
