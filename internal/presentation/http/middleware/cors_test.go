package middleware

import "testing"

func TestCORSConfig(t *testing.T) {
	cfg := CORSConfig(" http://a.test , ,http://b.test")
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[0] != "http://a.test" || cfg.AllowOrigins[1] != "http://b.test" {
		t.Errorf("AllowOrigins = %v", cfg.AllowOrigins)
	}
	if cfg.AllowAllOrigins || !cfg.AllowCredentials {
		t.Errorf("unexpected flags %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	open := CORSConfig("")
	if !open.AllowAllOrigins || open.AllowCredentials {
		t.Errorf("empty origin list should allow all origins without credentials, got %+v", open)
	}
}
