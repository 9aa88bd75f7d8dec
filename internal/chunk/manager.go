// Package chunk implements the Chunk Manager (spec.md §4.1): transport-
// agnostic fragmentation of application frames into MTU-sized chunks, and
// bounded-concurrency reassembly of inbound chunks back into frames.
package chunk

import (
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/valveguard/corectl/internal/frame"
	"github.com/valveguard/corectl/internal/observability"
)

// MaxTotalChunks is the hard cap on chunks per frame (spec.md §3).
const MaxTotalChunks = 8

var (
	ErrInvalidSize = errors.New("chunk: input would require more than 8 chunks")
	ErrNoMem       = errors.New("chunk: no free reassembly context slot")
)

// Config configures the Chunk Manager.
type Config struct {
	MaxChunkSize        int // includes header, per spec.md §4.1
	MaxConcurrentFrames int // 1..8
	ReassemblyTimeoutMs int
}

// effective returns the usable payload bytes per chunk.
func (c Config) effective() int {
	return c.MaxChunkSize - frame.HeaderSize
}

// Stats mirrors spec.md §4.1 "Observability".
type Stats struct {
	ActiveContexts int
	FramesSent     int64
	FramesCompleted int64
	Timeouts       int64
	Duplicates     int64
}

// reassemblyContext is spec.md §3's "Reassembly context".
type reassemblyContext struct {
	frameID       uint16
	createdAt     time.Time
	receivedBitmap uint8
	totalChunks   uint8
	expectedSize  int
	currentSize   int
	buffer        []byte
	active        bool
}

// ReceiveResult is returned by Receive for a single inbound chunk.
type ReceiveResult struct {
	IsDuplicate bool
	Completed   bool
	Frame       []byte // valid iff Completed
	FrameID     uint16
}

// Manager is the Chunk Manager. All public methods are safe for concurrent
// use; a single mutex protects the context array (spec.md §5).
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	contexts []*reassemblyContext // fixed capacity == cfg.MaxConcurrentFrames
	nextID   uint16

	stats Stats

	log     *observability.Logger
	metrics *observability.Metrics
}

// New creates a Chunk Manager bounded by cfg.
func New(cfg Config, log *observability.Logger, metrics *observability.Metrics) *Manager {
	if cfg.MaxConcurrentFrames < 1 {
		cfg.MaxConcurrentFrames = 1
	}
	if cfg.MaxConcurrentFrames > MaxTotalChunks {
		cfg.MaxConcurrentFrames = MaxTotalChunks
	}
	return &Manager{
		cfg:      cfg,
		contexts: make([]*reassemblyContext, cfg.MaxConcurrentFrames),
		nextID:   1,
		log:      log.WithComponent("chunk_manager"),
		metrics:  metrics,
	}
}

// Reconfigure updates the chunk size (and derived effective payload), used
// by Transport-BLE after an MTU exchange (spec.md §4.3).
func (m *Manager) Reconfigure(maxChunkSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.MaxChunkSize = maxChunkSize
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Send fragments data into a sequence of header-prefixed wire chunks.
// Ownership of the returned slice is transferred to the caller.
func (m *Manager) Send(data []byte) ([][]byte, error) {
	m.mu.Lock()
	effective := m.cfg.effective()
	m.mu.Unlock()

	if effective <= 0 {
		return nil, ErrInvalidSize
	}

	n := ceilDiv(len(data), effective)
	if n == 0 {
		n = 1
	}
	if n > MaxTotalChunks {
		return nil, ErrInvalidSize
	}

	frameID := m.allocFrameID()

	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := i * effective
		end := start + effective
		if end > len(data) {
			end = len(data)
		}
		payload := data[start:end]

		flags := frame.FlagChunked
		if i == n-1 {
			flags |= frame.FlagFinal
		} else {
			flags |= frame.FlagMore
		}

		h := frame.ChunkHeader{
			Flags:       flags,
			ChunkIdx:    uint8(i),
			TotalChunks: uint8(n),
			FrameID:     frameID,
			ChunkSize:   uint16(len(payload)),
		}
		out[i] = h.Encode(payload)
		m.log.ChunkSent(frameID, i, n, len(payload))
	}

	m.mu.Lock()
	m.stats.FramesSent++
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.FramesSentTotal.Inc()
		m.metrics.ChunksSentTotal.Add(float64(n))
	}

	return out, nil
}

// allocFrameID returns a monotonically increasing frame id, skipping 0 on
// wrap (spec.md §4.1).
func (m *Manager) allocFrameID() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	if m.nextID == 0 {
		m.nextID = 1
	}
	return id
}

// Receive ingests one on-wire chunk. It validates the chunk with
// frame.DecodeChunkHeader and returns that error for a malformed chunk.
func (m *Manager) Receive(wire []byte) (ReceiveResult, error) {
	h, payload, err := frame.DecodeChunkHeader(wire)
	if err != nil {
		return ReceiveResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	effective := m.cfg.effective()

	ctx := m.findContext(h.FrameID)
	if ctx == nil {
		ctx, err = m.allocContext(h, effective)
		if err != nil {
			return ReceiveResult{}, err
		}
	}

	bit := uint8(1) << h.ChunkIdx
	if ctx.receivedBitmap&bit != 0 {
		m.stats.Duplicates++
		if m.metrics != nil {
			m.metrics.ChunkDuplicatesTotal.Inc()
		}
		return ReceiveResult{IsDuplicate: true, FrameID: h.FrameID}, nil
	}

	offset := int(h.ChunkIdx) * effective
	copy(ctx.buffer[offset:], payload)
	ctx.receivedBitmap |= bit
	ctx.currentSize += len(payload)

	complete := ctx.receivedBitmap == (uint8(1)<<ctx.totalChunks)-1
	if !complete {
		return ReceiveResult{FrameID: h.FrameID}, nil
	}

	completed := make([]byte, ctx.currentSize)
	copy(completed, ctx.buffer[:ctx.currentSize])
	elapsed := time.Since(ctx.createdAt)
	m.releaseContextLocked(ctx)

	m.stats.FramesCompleted++
	if m.metrics != nil {
		m.metrics.FramesCompletedTotal.Inc()
	}
	m.log.ChunkReassembled(h.FrameID, len(completed), elapsed)
	if m.log != nil {
		fingerprint := blake3.Sum256(completed)
		_ = base64.StdEncoding.EncodeToString(fingerprint[:]) // diagnostic only, never gates completion
	}

	return ReceiveResult{Completed: true, Frame: completed, FrameID: h.FrameID}, nil
}

func (m *Manager) findContext(frameID uint16) *reassemblyContext {
	for _, c := range m.contexts {
		if c != nil && c.active && c.frameID == frameID {
			return c
		}
	}
	return nil
}

func (m *Manager) allocContext(h frame.ChunkHeader, effective int) (*reassemblyContext, error) {
	for i, c := range m.contexts {
		if c == nil || !c.active {
			ctx := &reassemblyContext{
				frameID:      h.FrameID,
				createdAt:    time.Now(),
				totalChunks:  h.TotalChunks,
				expectedSize: int(h.TotalChunks) * effective,
				buffer:       make([]byte, int(h.TotalChunks)*effective),
				active:       true,
			}
			m.contexts[i] = ctx
			return ctx, nil
		}
	}
	return nil, ErrNoMem
}

func (m *Manager) releaseContextLocked(ctx *reassemblyContext) {
	for i, c := range m.contexts {
		if c == ctx {
			m.contexts[i] = nil
		}
	}
}

// ExpireStale scans active contexts and releases any whose age exceeds the
// configured reassembly timeout, per spec.md §4.1 "Expiration sweep".
func (m *Manager) ExpireStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeout := time.Duration(m.cfg.ReassemblyTimeoutMs) * time.Millisecond
	now := time.Now()
	released := 0
	for i, c := range m.contexts {
		if c == nil || !c.active {
			continue
		}
		if age := now.Sub(c.createdAt); age > timeout {
			m.log.ReassemblyTimeout(c.frameID, age)
			m.contexts[i] = nil
			m.stats.Timeouts++
			released++
		}
	}
	if m.metrics != nil && released > 0 {
		m.metrics.ReassemblyTimeouts.Add(float64(released))
	}
	return released
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.ActiveContexts = 0
	for _, c := range m.contexts {
		if c != nil && c.active {
			s.ActiveContexts++
		}
	}
	if m.metrics != nil {
		m.metrics.ReassemblyContextsActive.Set(float64(s.ActiveContexts))
	}
	return s
}
