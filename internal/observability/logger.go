// Package observability provides structured logging, metrics, health
// checks and tracing shared across the firmware core subsystems.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{logger: logger}
}

// WithComponent scopes the logger to a registered component (chunk_manager,
// security1, transport_ble, transport_mqtt, error_manager, router, ...).
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", component).Logger()}
}

// WithSession adds a session/frame correlation id to the logger.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{logger: l.logger.With().Str("session_id", sessionID).Logger()}
}

// WithOrigin adds the originating transport to the logger.
func (l *Logger) WithOrigin(origin string) *Logger {
	return &Logger{logger: l.logger.With().Str("origin", origin).Logger()}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

// Error logs an error message.
func (l *Logger) Error(err error, msg string) { l.logger.Error().Err(err).Msg(msg) }

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) { l.logger.Fatal().Err(err).Msg(msg) }

// StateTransition logs a state-machine transition for any of the subsystems
// that own one (Security1, Transport-BLE, Transport-MQTT).
func (l *Logger) StateTransition(machine, from, to string) {
	l.logger.Info().
		Str("machine", machine).
		Str("from", from).
		Str("to", to).
		Msg("state transition")
}

// ChunkSent logs a chunk emitted on the send path.
func (l *Logger) ChunkSent(frameID uint16, chunkIdx, totalChunks, chunkSize int) {
	l.logger.Debug().
		Uint16("frame_id", frameID).
		Int("chunk_idx", chunkIdx).
		Int("total_chunks", totalChunks).
		Int("chunk_size", chunkSize).
		Msg("chunk sent")
}

// ChunkReassembled logs completion of a reassembled frame.
func (l *Logger) ChunkReassembled(frameID uint16, size int, elapsed time.Duration) {
	l.logger.Info().
		Uint16("frame_id", frameID).
		Int("size", size).
		Dur("elapsed", elapsed).
		Msg("frame reassembled")
}

// ReassemblyTimeout logs a reassembly context expiring before completion.
func (l *Logger) ReassemblyTimeout(frameID uint16, age time.Duration) {
	l.logger.Warn().
		Uint16("frame_id", frameID).
		Dur("age", age).
		Msg("reassembly context timed out")
}

// HandshakeFailed logs a fatal handshake failure (MAC mismatch, bad fixed
// fields, etc).
func (l *Logger) HandshakeFailed(reason string) {
	l.logger.Error().Str("reason", reason).Msg("security1 handshake failed")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
