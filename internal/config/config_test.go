package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/campus")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_AUTH_MODE", "")
	t.Setenv("COOKIE_SECURE", "")
	t.Setenv("SESSION_TTL_SECONDS", "")

	cfg := Load()
	if cfg.AdminAuthMode != AdminAuthCert {
		t.Fatalf("expected cert admin mode, got %q", cfg.AdminAuthMode)
	}
	if !cfg.CookieSecure {
		t.Error("expected secure cookies by default")
	}
	if cfg.SessionTTLSeconds != 3600 {
		t.Errorf("expected 3600s session ttl, got %d", cfg.SessionTTLSeconds)
	}
}

func TestLoadPanicsWithoutSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/campus")
	t.Setenv("JWT_SECRET", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing JWT_SECRET")
		}
	}()
	Load()
}

func TestAdminMode(t *testing.T) {
	cases := map[string]string{
		"either":  AdminAuthEither,
		"SESSION": AdminAuthSession,
		"cert":    AdminAuthCert,
		"bogus":   AdminAuthCert,
	}
	for raw, want := range cases {
		if got := adminMode(raw); got != want {
			t.Errorf("adminMode(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" https://a.example, ,https://b.example ")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseCSV = %v, want %v", got, want)
	}
	if parseCSV("  ") != nil {
		t.Error("expected nil for blank input")
	}
}

func TestEnvOrBool(t *testing.T) {
	t.Setenv("FLAG_X", "false")
	if envOrBool("FLAG_X", true) {
		t.Error("expected false")
	}
	t.Setenv("FLAG_X", "nope")
	if !envOrBool("FLAG_X", true) {
		t.Error("expected fallback for unparsable value")
	}
}
