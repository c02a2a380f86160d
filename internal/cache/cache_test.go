package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/safelens/safelens/internal/model"
)

func urlResult(raw string, score int) model.AggregateResult {
	return model.AggregateResult{
		Target:     model.NewURLTarget(raw),
		TrustScore: score,
		Final:      model.StatusSafe,
	}
}

func TestFingerprintPerChannel(t *testing.T) {
	long := strings.Repeat("a", 150)

	tests := []struct {
		name   string
		target model.Target
		want   string
	}{
		{"url", model.NewURLTarget("https://x.example/"), "url:https://x.example/"},
		{"url prefix cap", model.NewURLTarget(long), "url:" + strings.Repeat("a", 100)},
		{"sms", model.NewSMSTarget("win a prize"), "sms:win a prize"},
		{"qr keeps full payload", model.NewPayloadTarget(long, "menu"), "qr:" + long},
		{"email prefers hash", model.NewEmailTarget("body", "abc123"), "email:md5:abc123"},
		{"email without hash", model.NewEmailTarget("body", ""), "email:body"},
		{"voice prefers hash", model.NewVoiceTarget("transcript", "def456"), "voice:md5:def456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.target); got != tt.want {
				t.Errorf("Fingerprint = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFingerprintCountsRunesNotBytes(t *testing.T) {
	// 100 three-byte runes must survive the prefix cap intact.
	text := strings.Repeat("가", 100)
	if got := Fingerprint(model.NewSMSTarget(text)); got != "sms:"+text {
		t.Errorf("Fingerprint truncated a 100-rune text: %q", got)
	}
}

func TestLookupReturnsNewestEntry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	target := model.NewURLTarget("https://x.example/")

	if err := s.Insert(ctx, NewEntry(target, urlResult("https://x.example/", 80))); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, NewEntry(target, urlResult("https://x.example/", 40))); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entry, ok, err := Lookup(ctx, s, target)
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if entry.Result.TrustScore != 40 {
		t.Errorf("TrustScore = %d, want newest (40)", entry.Result.TrustScore)
	}
}

func TestLookupMissOnUnknownFingerprint(t *testing.T) {
	_, ok, err := Lookup(context.Background(), NewMemoryStore(), model.NewURLTarget("https://never.example/"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Error("expected miss")
	}
}

func TestLookupQRExpectationMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stored := model.NewPayloadTarget("https://pay.example/t", "restaurant menu")
	res := model.AggregateResult{Target: stored, TrustScore: 90, Final: model.StatusSafe}
	if err := s.Insert(ctx, NewEntry(stored, res)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Same payload, same fingerprint, different stated purpose.
	if _, ok, _ := Lookup(ctx, s, model.NewPayloadTarget("https://pay.example/t", "payment")); ok {
		t.Error("changed expectation must be a miss")
	}
	if _, ok, _ := Lookup(ctx, s, model.NewPayloadTarget("https://pay.example/t", "restaurant menu")); !ok {
		t.Error("unchanged expectation must hit")
	}
}

func TestLookupHashChannels(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stored := model.NewEmailTarget("dear customer ...", "hash-a")
	res := model.AggregateResult{Target: stored, TrustScore: 55, Final: model.StatusSuspicious}
	if err := s.Insert(ctx, NewEntry(stored, res)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, ok, _ := Lookup(ctx, s, model.NewEmailTarget("dear customer ...", "hash-a")); !ok {
		t.Error("matching hash must hit")
	}
	if _, ok, _ := Lookup(ctx, s, model.NewEmailTarget("other body", "")); ok {
		t.Error("missing hash with different text must miss")
	}

	// Short hashless text keys by prefix and is identity-complete.
	short := model.NewEmailTarget("short body", "")
	if err := s.Insert(ctx, NewEntry(short, model.AggregateResult{Target: short, TrustScore: 70})); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok, _ := Lookup(ctx, s, model.NewEmailTarget("short body", "")); !ok {
		t.Error("short hashless text must hit on exact equality")
	}
}

func TestDiskStoreAppendAndFindLatest(t *testing.T) {
	ctx := context.Background()
	s := NewDiskStore(t.TempDir())
	target := model.NewURLTarget("https://x.example/")

	if _, ok, err := s.FindLatest(ctx, Fingerprint(target)); err != nil || ok {
		t.Fatalf("empty store: got %v, %v", ok, err)
	}

	first := NewEntry(target, urlResult("https://x.example/", 100))
	second := NewEntry(target, urlResult("https://x.example/", 30))
	if err := s.Insert(ctx, first); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, second); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entry, ok, err := s.FindLatest(ctx, Fingerprint(target))
	if err != nil || !ok {
		t.Fatalf("FindLatest = %v, %v", ok, err)
	}
	if entry.ID != second.ID {
		t.Errorf("ID = %s, want newest %s", entry.ID, second.ID)
	}
	if entry.Result.TrustScore != 30 {
		t.Errorf("TrustScore = %d, want 30", entry.Result.TrustScore)
	}
}

func TestLayeredPromotesAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	back := NewMemoryStore()
	l := NewLayered(back)
	target := model.NewURLTarget("https://x.example/")

	entry := NewEntry(target, urlResult("https://x.example/", 85))
	if err := l.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// The backing store must hold it, not just the front.
	got, ok, err := back.FindLatest(ctx, entry.Fingerprint)
	if err != nil || !ok {
		t.Fatalf("backing FindLatest = %v, %v", ok, err)
	}
	if got.ID != entry.ID {
		t.Errorf("backing ID = %s, want %s", got.ID, entry.ID)
	}

	// A fresh layered wrapper over the same backend promotes on first read.
	l2 := NewLayered(back)
	if _, ok, _ := l2.FindLatest(ctx, entry.Fingerprint); !ok {
		t.Fatal("cold read must hit backing store")
	}
	if _, ok := l2.front.Get(entry.Fingerprint); !ok {
		t.Error("hit was not promoted to the front")
	}
}

func TestNewStoreBackends(t *testing.T) {
	cfg := model.DefaultConfig().Cache
	cfg.Backend = "memory"
	if _, ok := NewStore(cfg).(*MemoryStore); !ok {
		t.Error("memory backend not selected")
	}

	cfg.Backend = "disk"
	cfg.Dir = t.TempDir()
	if _, ok := NewStore(cfg).(*Layered); !ok {
		t.Error("disk backend should be layered")
	}
}
