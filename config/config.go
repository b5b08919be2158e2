// Package config resolves settings from flags, the environment and an
// optional .env file. Flags win over environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"dictate/dictation"
	"dictate/formatter"
	"dictate/hotkey"
	"dictate/transcriber"
)

// ConfigError names the setting that is invalid.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string { return e.Field + ": " + e.Msg }

type Config struct {
	Hotkey      hotkey.Spec
	FormatMode  formatter.Mode
	Transcriber transcriber.Config
	Formatter   formatter.Config
	Dictation   dictation.Config

	DashboardAddr string
	Device        string
	Setup         bool
	VAD           bool
	Beep          bool
	Tray          bool
	TUI           bool
	GUI           bool
	Notify        bool

	KafkaBrokers []string
	KafkaTopic   string

	LogPath string
	Doctor  bool
	Version bool
	Test    bool
	// Fake swaps remote providers for in-process fakes (DICTATE_FAKE=1).
	Fake bool
	// Args are the positional arguments, e.g. the WAV file for -test.
	Args []string
}

// KeyVars are the credential variables read from the environment.
var KeyVars = []string{"OPENAI_API_KEY", "GROQ_API_KEY", "DEEPGRAM_API_KEY", "GEMINI_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS"}

var transcriberKeys = map[string]string{
	"openai":   "OPENAI_API_KEY",
	"groq":     "GROQ_API_KEY",
	"deepgram": "DEEPGRAM_API_KEY",
	"google":   "GOOGLE_APPLICATION_CREDENTIALS",
}

var formatterKeys = map[string]string{
	"openai": "OPENAI_API_KEY",
	"groq":   "GROQ_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"none":   "",
}

// Load parses args (without the program name). It reads .env from the
// working directory first; variables already set are kept.
func Load(args []string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, &ConfigError{Field: ".env", Msg: err.Error()}
		}
	}

	var (
		cfg        Config
		envErr     error
		hotkeyName string
		modeName   string
		busyName   string
		brokers    string
	)
	envInt := func(name string, def int) int {
		v := os.Getenv(name)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil && envErr == nil {
			envErr = &ConfigError{Field: name, Msg: fmt.Sprintf("not an integer: %q", v)}
		}
		return n
	}
	envBool := func(name string, def bool) bool {
		v := os.Getenv(name)
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil && envErr == nil {
			envErr = &ConfigError{Field: name, Msg: fmt.Sprintf("not a boolean: %q", v)}
		}
		return b
	}

	fs := flag.NewFlagSet("dictate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&hotkeyName, "hotkey", envStr("HOTKEY", "ctrl_a"), "Hold-to-talk key (caps_lock, ctrl_r, f13, ctrl_a, alt+space, ...)")
	fs.StringVar(&modeName, "format-mode", envStr("FORMAT_MODE", string(formatter.SingleLine)), "single-line or document")
	fs.StringVar(&cfg.Transcriber.Provider, "transcriber", envStr("TRANSCRIBER", "openai"), "openai, groq, deepgram or google")
	fs.StringVar(&cfg.Formatter.Provider, "formatter", envStr("FORMATTER", "openai"), "openai, groq, gemini or none")
	fs.StringVar(&cfg.DashboardAddr, "dashboard", envStr("DASHBOARD_ADDR", "127.0.0.1:8765"), "Dashboard listen address (empty disables)")
	fs.StringVar(&cfg.Transcriber.Language, "lang", envStr("LANGUAGE", "en"), "Transcription language code (empty = auto-detect)")
	fs.StringVar(&cfg.Device, "device", envStr("AUDIO_DEVICE", ""), "Microphone name or substring (default: system default)")
	fs.BoolVar(&cfg.Setup, "setup", false, "Pick the microphone interactively")
	fs.IntVar(&cfg.Dictation.MinSamples, "min-samples", envInt("MIN_SAMPLES", dictation.DefaultMinSamples), "Discard recordings shorter than this many samples")
	fs.IntVar(&cfg.Dictation.QuickFormatWords, "quick-words", envInt("QUICK_FORMAT_WORDS", dictation.DefaultQuickFormatWords), "Skip the formatter below this word count (0 disables)")
	fs.StringVar(&busyName, "busy", envStr("BUSY_POLICY", string(dictation.BusyDrop)), "drop or queue a hold that starts while busy")
	fs.BoolVar(&cfg.VAD, "vad", envBool("VAD_GATE", false), "Discard recordings without voiced frames")
	fs.BoolVar(&cfg.Beep, "beep", envBool("BEEP", true), "Play start and stop ticks")
	fs.BoolVar(&cfg.Tray, "tray", envBool("TRAY", true), "Show the tray icon")
	fs.BoolVar(&cfg.TUI, "tui", false, "Run with terminal UI")
	fs.BoolVar(&cfg.GUI, "gui", false, "Show the status window (needs -tags gui)")
	fs.BoolVar(&cfg.Notify, "notify", envBool("NOTIFY", false), "Desktop notification when a dictation fails")
	fs.StringVar(&brokers, "kafka-brokers", envStr("KAFKA_BROKERS", ""), "Comma-separated Kafka brokers (empty = log only)")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", envStr("KAFKA_TOPIC", "dictation.transcripts"), "Kafka topic for transcripts")
	fs.StringVar(&cfg.LogPath, "logpath", "", "Log directory (default: DICTATE_LOG_PATH or OS-specific location)")
	fs.BoolVar(&cfg.Doctor, "doctor", false, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.Version, "version", false, "Print version and exit")
	fs.BoolVar(&cfg.Test, "test", false, "Headless stdin-driven mode: dictate -test <wav>")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stderr)
			fs.PrintDefaults()
			return Config{}, err
		}
		return Config{}, &ConfigError{Field: "flags", Msg: err.Error()}
	}
	if envErr != nil {
		return Config{}, envErr
	}
	cfg.Args = fs.Args()
	cfg.Fake = envBool("DICTATE_FAKE", false)
	if envErr != nil {
		return Config{}, envErr
	}

	var err error
	if cfg.Hotkey, err = hotkey.Parse(hotkeyName); err != nil {
		return Config{}, &ConfigError{Field: "hotkey", Msg: err.Error()}
	}
	if cfg.FormatMode, err = formatter.ParseMode(modeName); err != nil {
		return Config{}, &ConfigError{Field: "format-mode", Msg: err.Error()}
	}
	if cfg.Dictation.Busy, err = dictation.ParseBusyPolicy(busyName); err != nil {
		return Config{}, &ConfigError{Field: "busy", Msg: err.Error()}
	}
	cfg.Dictation.Mode = cfg.FormatMode
	if cfg.Dictation.MinSamples < 0 {
		return Config{}, &ConfigError{Field: "min-samples", Msg: "must not be negative"}
	}
	if cfg.Dictation.QuickFormatWords < 0 {
		return Config{}, &ConfigError{Field: "quick-words", Msg: "must not be negative"}
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	if cfg.Test && len(cfg.Args) == 0 {
		return Config{}, &ConfigError{Field: "test", Msg: "usage: dictate -test <wav-file>"}
	}

	tKey, ok := transcriberKeys[cfg.Transcriber.Provider]
	if !ok {
		return Config{}, &ConfigError{Field: "transcriber", Msg: fmt.Sprintf("unknown provider %q", cfg.Transcriber.Provider)}
	}
	fKey, ok := formatterKeys[cfg.Formatter.Provider]
	if !ok {
		return Config{}, &ConfigError{Field: "formatter", Msg: fmt.Sprintf("unknown provider %q", cfg.Formatter.Provider)}
	}
	if cfg.Transcriber.Provider == "google" {
		cfg.Transcriber.CredentialsFile = os.Getenv(tKey)
	} else {
		cfg.Transcriber.APIKey = os.Getenv(tKey)
	}
	if fKey != "" {
		cfg.Formatter.APIKey = os.Getenv(fKey)
	}

	// Google falls back to application default credentials.
	checkKeys := !cfg.Fake && !cfg.Doctor && !cfg.Version
	if checkKeys && cfg.Transcriber.Provider != "google" && cfg.Transcriber.APIKey == "" {
		return Config{}, &ConfigError{Field: "transcriber", Msg: tKey + " is not set"}
	}
	if checkKeys && fKey != "" && cfg.Formatter.APIKey == "" {
		return Config{}, &ConfigError{Field: "formatter", Msg: fKey + " is not set"}
	}
	return cfg, nil
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Keys reports which credential variables are set.
func Keys() map[string]bool {
	out := make(map[string]bool, len(KeyVars))
	for _, k := range KeyVars {
		out[k] = os.Getenv(k) != ""
	}
	return out
}
