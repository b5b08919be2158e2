package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       atomic.Bool
	pid            int
	dir            string
)

// CycleMetrics summarizes one completed dictation cycle.
type CycleMetrics struct {
	ID           string
	AudioS       float64
	TranscribeMs float64
	FormatMs     float64
	TotalMs      float64
	Tokens       int
	Words        int
	Quick        bool
	Mode         string
}

// NetworkMetrics is what the traced HTTP client observed for one request.
type NetworkMetrics struct {
	Provider   string
	DNSMs      float64
	ConnMs     float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
	TLSProto   string
	UploadKB   float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: DICTATE_LOG_PATH environment variable
	if envPath := os.Getenv("DICTATE_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	logMu.Lock()
	dir = d
	logMu.Unlock()
}

func Dir() string {
	logMu.Lock()
	defer logMu.Unlock()
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	if err := EnsureDir(); err != nil {
		return err
	}

	logMu.Lock()
	defer logMu.Unlock()

	pid = os.Getpid()

	var err error

	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribeFile, err = os.OpenFile(filepath.Join(dir, "transcribe_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		diagFile = nil
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Debugf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Debug().Msgf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(transcriber, formatter, mode, hotkey string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("transcriber", transcriber).
		Str("formatter", formatter).
		Str("mode", mode).
		Str("hotkey", hotkey).
		Msg("session_start")
}

func SessionEnd(cycles int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Int("cycles", cycles).Msg("session_end")
}

func GestureDropped(status string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("status", status).Msg("gesture_dropped")
}

func CycleDiscarded(id, reason string, samples int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("cycle", id).
		Str("reason", reason).
		Int("samples", samples).
		Msg("cycle_discarded")
}

func CycleFailed(id, stage string, err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Error().
		Str("cycle", id).
		Str("stage", stage).
		Err(err).
		Msg("cycle_failed")
}

func CycleCompleted(m CycleMetrics) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("cycle", m.ID).
		Str("mode", m.Mode).
		Bool("quick", m.Quick).
		Float64("audio_s", m.AudioS).
		Float64("transcribe_ms", m.TranscribeMs).
		Float64("format_ms", m.FormatMs).
		Float64("total_ms", m.TotalMs).
		Int("tokens", m.Tokens).
		Int("words", m.Words).
		Msg("cycle_completed")
}

func Network(m NetworkMetrics) {
	if !logReady.Load() {
		return
	}
	conn := "new"
	if m.ConnReused {
		conn = "reused"
	}
	ev := diagLog.Info().
		Str("provider", m.Provider).
		Str("conn", conn)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	ev.Float64("dns_ms", m.DNSMs).
		Float64("conn_ms", m.ConnMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Float64("upload_kb", m.UploadKB).
		Msg("request")
}

// TranscriptionText appends one tab-separated line per transcript.
// Newlines inside text are flattened so each record stays on one line.
func TranscriptionText(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	flat := strings.ReplaceAll(text, "\n", "\\n")
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, flat)
	transcribeFile.WriteString(line)
}
