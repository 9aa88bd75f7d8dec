package chunk

import (
	"io"
	"testing"

	"github.com/valveguard/corectl/internal/observability"
)

func BenchmarkSendReceive(b *testing.B) {
	log := observability.NewLogger("bench", "0", io.Discard)
	m := New(Config{MaxChunkSize: 180, MaxConcurrentFrames: 8, ReassemblyTimeoutMs: 5000}, log, nil)
	input := make([]byte, 900)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chunks, err := m.Send(input)
		if err != nil {
			b.Fatalf("Send: %v", err)
		}
		for _, c := range chunks {
			if _, err := m.Receive(c); err != nil {
				b.Fatalf("Receive: %v", err)
			}
		}
	}
}
