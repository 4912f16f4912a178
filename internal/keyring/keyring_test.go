package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetConnectionString(t *testing.T) {
	gokeyring.MockInit()

	want := "postgres://qada@localhost:5432/qada?sslmode=disable"
	if err := SetConnectionString(want); err != nil {
		t.Fatalf("SetConnectionString() failed: %v", err)
	}
	got, err := GetConnectionString()
	if err != nil {
		t.Fatalf("GetConnectionString() failed: %v", err)
	}
	if got != want {
		t.Errorf("GetConnectionString() = %q, want %q", got, want)
	}
}

func TestSetConnectionStringEmpty(t *testing.T) {
	gokeyring.MockInit()
	if err := SetConnectionString(""); err == nil {
		t.Error("SetConnectionString(\"\") should return an error")
	}
}

func TestDeleteConnectionString(t *testing.T) {
	gokeyring.MockInit()

	if err := DeleteConnectionString(); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteConnectionString() on empty keyring = %v, want ErrNotFound", err)
	}

	_ = SetConnectionString("host=localhost dbname=qada")
	if err := DeleteConnectionString(); err != nil {
		t.Fatalf("DeleteConnectionString() failed: %v", err)
	}
	if _, err := GetConnectionString(); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConnectionString() after delete = %v, want ErrNotFound", err)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("mock keyring should be available")
	}

	gokeyring.MockInitWithError(errors.New("dbus not running"))
	if IsAvailable() {
		t.Error("failing keyring reported as available")
	}
	if _, err := GetConnectionString(); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("GetConnectionString() = %v, want ErrKeyringUnavailable", err)
	}
}

func TestResolve(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(EnvConnection, "")

	connStr, src, err := Resolve("")
	if err != nil || connStr != "" || src != SourceNone {
		t.Errorf("Resolve() with nothing configured = %q, %q, %v", connStr, src, err)
	}

	_ = SetConnectionString("postgres://from-keyring@localhost/qada")
	connStr, src, _ = Resolve("")
	if src != SourceKeyring || connStr != "postgres://from-keyring@localhost/qada" {
		t.Errorf("Resolve() = %q, %q; want keyring value", connStr, src)
	}

	t.Setenv(EnvConnection, "postgres://from-env@localhost/qada")
	connStr, src, _ = Resolve("")
	if src != SourceEnv || connStr != "postgres://from-env@localhost/qada" {
		t.Errorf("Resolve() = %q, %q; want env value", connStr, src)
	}

	connStr, src, _ = Resolve("postgres://explicit@localhost/qada")
	if src != SourceFlag || connStr != "postgres://explicit@localhost/qada" {
		t.Errorf("Resolve() = %q, %q; want explicit value", connStr, src)
	}

	gokeyring.MockInitWithError(errors.New("locked"))
	t.Setenv(EnvConnection, "")
	if connStr, src, err := Resolve(""); err != nil || connStr != "" || src != SourceNone {
		t.Errorf("Resolve() with broken keyring = %q, %q, %v", connStr, src, err)
	}
}
