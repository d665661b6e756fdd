package config

import "testing"

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callinsights", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret", OperatorKey: "op"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "call-insights"
	c.Auth.JWTAudience = "api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_DefaultsBookingTags(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(c.Filters.BookingTags) == 0 {
		t.Fatalf("expected booking tag defaults")
	}
	if c.Filters.BookingTags[0] != "Appointment Booked" {
		t.Fatalf("unexpected first booking tag: %q", c.Filters.BookingTags[0])
	}
}

func TestOptionalDuration(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "15m")
	d, err := optionalDuration("JWT_ACCESS_TTL")
	if err != nil || d.Minutes() != 15 {
		t.Fatalf("expected 15m, got %v (%v)", d, err)
	}

	t.Setenv("JWT_ACCESS_TTL", "")
	d, err = optionalDuration("JWT_ACCESS_TTL")
	if err != nil || d != 0 {
		t.Fatalf("empty must mean unset, got %v (%v)", d, err)
	}
}

func TestOptionalDuration_MalformedIsAnError(t *testing.T) {
	t.Setenv("JWT_REFRESH_TTL", "soon")
	if _, err := optionalDuration("JWT_REFRESH_TTL"); err == nil {
		t.Fatalf("expected a parse error for a malformed duration")
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" Taylor , ,Sam,")
	if len(got) != 2 || got[0] != "Taylor" || got[1] != "Sam" {
		t.Fatalf("unexpected split: %v", got)
	}
	if out := SplitCSV(""); len(out) != 0 {
		t.Fatalf("expected empty slice, got %v", out)
	}
}
