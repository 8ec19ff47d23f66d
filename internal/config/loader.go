package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the speech-to-text backends that ship with
// cueline. Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"deepgram", "whisper", "replay"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	errs = append(errs, validateProvider("provider", cfg.Provider)...)
	for i, fb := range cfg.Provider.Fallbacks {
		prefix := fmt.Sprintf("provider.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name must not be empty", prefix))
		}
		errs = append(errs, validateProvider(prefix, fb)...)
	}
	if len(cfg.Provider.Fallbacks) > 0 && cfg.Provider.Name == "" {
		errs = append(errs, errors.New("provider.fallbacks requires provider.name to be set"))
	}

	t := cfg.Tracking
	if t.PhraseLength < 0 || t.PhraseLength == 1 {
		errs = append(errs, fmt.Errorf("tracking.phrase_length %d must be 0 (default) or at least 2", t.PhraseLength))
	}
	if t.SearchWindow < 0 {
		errs = append(errs, fmt.Errorf("tracking.search_window %d must not be negative", t.SearchWindow))
	}
	if t.MaxDistanceRatio < 0 || t.MaxDistanceRatio > 1 {
		errs = append(errs, fmt.Errorf("tracking.max_distance_ratio %.2f is out of range [0, 1]", t.MaxDistanceRatio))
	}
	if t.ProximityWeight < 0 {
		errs = append(errs, fmt.Errorf("tracking.proximity_weight %.2f must not be negative", t.ProximityWeight))
	}
	if t.MaxSmallJump < 0 {
		errs = append(errs, fmt.Errorf("tracking.max_small_jump %d must not be negative", t.MaxSmallJump))
	}
	if t.ConfirmThreshold < 0 {
		errs = append(errs, fmt.Errorf("tracking.confirm_threshold %d must not be negative", t.ConfirmThreshold))
	}
	if t.LookAhead < 0 {
		errs = append(errs, fmt.Errorf("tracking.look_ahead %d must not be negative", t.LookAhead))
	}
	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("tracking.confidence_threshold %.2f is out of range [0, 1]", t.ConfidenceThreshold))
	}

	sc := cfg.Scroll
	if sc.SmoothingAlpha < 0 || sc.SmoothingAlpha > 1 {
		errs = append(errs, fmt.Errorf("scroll.smoothing_alpha %.2f is out of range [0, 1]", sc.SmoothingAlpha))
	}
	if sc.WPM < 0 {
		errs = append(errs, fmt.Errorf("scroll.wpm %.1f must not be negative", sc.WPM))
	}
	if sc.FontSize < 0 || sc.LineSpacing < 0 {
		errs = append(errs, errors.New("scroll.font_size and scroll.line_spacing must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProvider checks one backend entry. prefix names the entry's
// location in the config for error messages.
func validateProvider(prefix string, e ProviderEntry) []error {
	var errs []error

	if e.Name != "" && !slices.Contains(ValidProviderNames, e.Name) {
		slog.Warn("unknown provider name — may be a typo",
			"name", e.Name,
			"known", ValidProviderNames,
		)
	}
	if e.Name == "deepgram" && e.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api_key is required for deepgram", prefix))
	}
	if e.Name == "whisper" && e.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model (ggml model path) is required for whisper", prefix))
	}
	if e.Name == "replay" && e.FixturePath == "" {
		errs = append(errs, fmt.Errorf("%s.fixture_path is required for replay", prefix))
	}
	if e.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("%s.sample_rate %d must not be negative", prefix, e.SampleRate))
	}
	return errs
}
