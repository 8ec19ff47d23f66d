// Package config provides the configuration schema and loader for the
// cueline scroll-engine server.
package config

// LogLevel controls log verbosity for the cueline server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for cueline.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderEntry  `yaml:"provider"`
	Tracking TrackingConfig `yaml:"tracking"`
	Scroll   ScrollConfig   `yaml:"scroll"`
}

// ServerConfig holds network and logging settings for the cueline server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProviderEntry selects and configures the speech-to-text backend.
type ProviderEntry struct {
	// Name selects the provider implementation: "deepgram", "whisper", or
	// "replay". Empty disables voice tracking (constant mode still works).
	Name string `yaml:"name"`

	// APIKey is the authentication key for cloud providers.
	APIKey string `yaml:"api_key"`

	// Model selects a provider-specific model ("nova-3" for Deepgram) or,
	// for whisper, the path to a ggml model file.
	Model string `yaml:"model"`

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	Language string `yaml:"language"`

	// SampleRate is the PCM sample rate in Hz delivered to the provider.
	// Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FixturePath is the hypothesis fixture file used by the replay
	// provider. Ignored by other providers.
	FixturePath string `yaml:"fixture_path"`

	// Fallbacks are additional backends tried in order when this one fails
	// to open a stream. Nested fallbacks are ignored.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// TrackingConfig tunes the voice alignment pipeline. Zero values select the
// reference defaults noted per field.
type TrackingConfig struct {
	// PhraseLength is how many trailing stable tokens form the match
	// phrase. Default: 6.
	PhraseLength int `yaml:"phrase_length"`

	// SearchWindow is the forward search window in words. Default: 30.
	SearchWindow int `yaml:"search_window"`

	// MaxDistanceRatio is the maximum accepted edit distance as a fraction
	// of the phrase length in characters. Default: 0.4.
	MaxDistanceRatio float64 `yaml:"max_distance_ratio"`

	// ProximityWeight is the per-word distance penalty biasing matches
	// toward the current cursor. Default: 0.3.
	ProximityWeight float64 `yaml:"proximity_weight"`

	// MaxSmallJump is the largest forward jump committed without
	// confirmation. Default: 10.
	MaxSmallJump int `yaml:"max_small_jump"`

	// ConfirmThreshold is how many consecutive consistent candidates a
	// large jump needs before committing. Default: 3.
	ConfirmThreshold int `yaml:"confirm_threshold"`

	// LookAhead is the forward offset added to the confirmed index for
	// display, compensating recognition latency. Default: 4.
	LookAhead int `yaml:"look_ahead"`

	// ConfidenceThreshold drops recognized tokens below this per-token
	// confidence before matching. Default: 0.4.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// ScrollConfig tunes the scroll control loop.
type ScrollConfig struct {
	// SmoothingAlpha is the exponential smoothing factor applied to the
	// scroll offset each tick. Default: 0.13.
	SmoothingAlpha float64 `yaml:"smoothing_alpha"`

	// WPM is the constant-mode speed in words per minute. Default: 140.
	WPM float64 `yaml:"wpm"`

	// FontSize is the rendered font size in points. Default: 48.
	FontSize float64 `yaml:"font_size"`

	// LineSpacing is the rendered line spacing in points. Default: 12.
	LineSpacing float64 `yaml:"line_spacing"`
}
