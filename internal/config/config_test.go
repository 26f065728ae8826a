package config

import (
	"reflect"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.OCRThreshold != 40 {
		t.Errorf("expected OCR threshold 40, got %d", cfg.OCRThreshold)
	}
	if cfg.RenderDPI != 300 {
		t.Errorf("expected render DPI 300, got %d", cfg.RenderDPI)
	}
	if cfg.MaxSessions != 5 {
		t.Errorf("expected max sessions 5, got %d", cfg.MaxSessions)
	}
	if cfg.MaxAgeHours != 24 {
		t.Errorf("expected max age 24h, got %v", cfg.MaxAgeHours)
	}
	if !cfg.CleanupOnExit {
		t.Error("cleanup should default to enabled")
	}
	if cfg.TableEngines != "lattice,stream,textgrid" {
		t.Errorf("unexpected default table engines %q", cfg.TableEngines)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OCR_THRESHOLD", "100")
	t.Setenv("OCR_LANGUAGES", "eng+deu")
	t.Setenv("MAX_SESSIONS", "2")
	t.Setenv("CLEANUP_ON_EXIT", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.OCRThreshold != 100 {
		t.Errorf("expected OCR threshold 100, got %d", cfg.OCRThreshold)
	}
	if cfg.OCRLanguages != "eng+deu" {
		t.Errorf("expected eng+deu, got %q", cfg.OCRLanguages)
	}
	if cfg.MaxSessions != 2 {
		t.Errorf("expected max sessions 2, got %d", cfg.MaxSessions)
	}
	if cfg.CleanupOnExit {
		t.Error("cleanup should be disabled")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty redis url", func(c *Config) { c.RedisURL = "" }},
		{"empty output dir", func(c *Config) { c.OutputBaseDir = "" }},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"negative threshold", func(c *Config) { c.OCRThreshold = -1 }},
		{"dpi too low", func(c *Config) { c.RenderDPI = 10 }},
		{"zero max sessions", func(c *Config) { c.MaxSessions = 0 }},
		{"zero max age", func(c *Config) { c.MaxAgeHours = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestRunOptionsFrom(t *testing.T) {
	t.Setenv("OCR_LANGUAGES", "eng+nor")
	t.Setenv("TABLE_ENGINES", "stream, textgrid")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	opts := cfg.RunOptionsFrom("/in/doc.pdf")
	if opts.Source != "/in/doc.pdf" {
		t.Errorf("unexpected source %q", opts.Source)
	}
	if opts.StartPage != 1 || opts.EndPage != 0 {
		t.Errorf("expected full-document default range, got %d..%d", opts.StartPage, opts.EndPage)
	}
	if !reflect.DeepEqual(opts.OCRLanguages, []string{"eng", "nor"}) {
		t.Errorf("unexpected languages %v", opts.OCRLanguages)
	}
	if !reflect.DeepEqual(opts.TableEngines, []string{"stream", "textgrid"}) {
		t.Errorf("unexpected engines %v", opts.TableEngines)
	}
}

func TestSplitList(t *testing.T) {
	cases := []struct {
		in   string
		sep  string
		want []string
	}{
		{"a,b,c", ",", []string{"a", "b", "c"}},
		{" a , b ", ",", []string{"a", "b"}},
		{"", ",", nil},
		{"eng+deu", "+", []string{"eng", "deu"}},
		{",,", ",", nil},
	}
	for _, tc := range cases {
		if got := SplitList(tc.in, tc.sep); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SplitList(%q, %q) = %v, want %v", tc.in, tc.sep, got, tc.want)
		}
	}
}
