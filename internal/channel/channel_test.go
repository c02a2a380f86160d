package channel

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/safelens/safelens/internal/cache"
	"github.com/safelens/safelens/internal/llm"
	"github.com/safelens/safelens/internal/model"
)

// fakeProvider returns a scripted JSON payload.
type fakeProvider struct {
	raw   string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ClassifyJSON(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

// fakeClassifier reports a fixed phishing probability.
type fakeClassifier struct {
	prob  float64
	err   error
	calls int
}

func (f *fakeClassifier) PhishingProbability(ctx context.Context, text string) (float64, error) {
	f.calls++
	return f.prob, f.err
}

func (f *fakeClassifier) Close() error { return nil }

// fakeScanner returns a scripted verdict for every URL.
type fakeScanner struct {
	score  int
	status model.StageStatus
	calls  int
}

func (f *fakeScanner) Evaluate(ctx context.Context, url string) (*model.AggregateResult, error) {
	f.calls++
	return &model.AggregateResult{
		Target:     model.NewURLTarget(url),
		TrustScore: f.score,
		Final:      f.status,
		FinalURL:   url,
	}, nil
}

func deps(provider llm.Provider, scanner URLScanner, store cache.Store) Deps {
	return Deps{
		Provider: provider,
		Scanner:  scanner,
		Store:    store,
		Config:   model.DefaultConfig(),
	}
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("click http://a.example/x and https://b.example/y now")
	want := []string{"http://a.example/x", "https://b.example/y"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("ExtractURLs = %v, want %v", urls, want)
	}
	if got := ExtractURLs("no links here"); got != nil {
		t.Errorf("ExtractURLs = %v, want nil", got)
	}
}

func TestSMSScoringAlgebra(t *testing.T) {
	// Model 0.8 -> penalty 80. Verification confidence 0.25 -> adjusted 20,
	// restitution 60. One DANGER URL -> 50. 100-80+60-50 = 30, SUSPICIOUS.
	classifier := &fakeClassifier{prob: 0.8}
	provider := &fakeProvider{raw: `{"is_phishing":true,"confidence":0.25,"reason":"likely false positive"}`}
	scanner := &fakeScanner{score: 10, status: model.StatusDanger}

	a := NewSMS(classifier, deps(provider, scanner, nil))

	res, err := a.Analyze(context.Background(), "urgent! verify at http://evil.example/x")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 30 || res.Final != model.StatusSuspicious {
		t.Errorf("got %d/%s, want 30/SUSPICIOUS", res.TrustScore, res.Final)
	}

	verify, ok := res.Stage(model.StageVerify)
	if !ok {
		t.Fatal("verification stage missing")
	}
	if verify.Penalty != -60 {
		t.Errorf("verification Penalty = %d, want -60 (restitution)", verify.Penalty)
	}
	if verify.Meta["adjusted_penalty"] != 20 {
		t.Errorf("adjusted_penalty = %v, want 20", verify.Meta["adjusted_penalty"])
	}

	links, ok := res.Stage(model.StageLinks)
	if !ok {
		t.Fatal("links stage missing")
	}
	if links.Penalty != 50 {
		t.Errorf("links Penalty = %d, want 50", links.Penalty)
	}
	if scanner.calls != 1 {
		t.Errorf("scanner calls = %d, want 1", scanner.calls)
	}
}

func TestSMSCleanMessageSkipsVerification(t *testing.T) {
	classifier := &fakeClassifier{prob: 0.2}
	provider := &fakeProvider{raw: `{}`}

	a := NewSMS(classifier, deps(provider, nil, nil))

	res, err := a.Analyze(context.Background(), "see you at lunch")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 100 || res.Final != model.StatusSafe {
		t.Errorf("got %d/%s, want 100/SAFE", res.TrustScore, res.Final)
	}
	if _, ok := res.Stage(model.StageVerify); ok {
		t.Error("verification should be skipped when the model penalty is 0")
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

func TestSMSClassifierFailureFailsOpen(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("model broken")}

	a := NewSMS(classifier, deps(nil, nil, nil))

	res, err := a.Analyze(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	stage, ok := res.Stage(model.StageTextModel)
	if !ok {
		t.Fatal("model stage missing")
	}
	if stage.Status != model.StatusError || stage.Penalty != 0 {
		t.Errorf("model stage = %s/%d, want ERROR/0", stage.Status, stage.Penalty)
	}
	if res.TrustScore != 100 {
		t.Errorf("TrustScore = %d, want 100", res.TrustScore)
	}
}

func TestSMSEmptyMessageRejected(t *testing.T) {
	a := NewSMS(nil, deps(nil, nil, nil))
	if _, err := a.Analyze(context.Background(), "   "); err == nil {
		t.Fatal("expected error")
	}
}

func TestSMSCacheReplaySkipsRecomputation(t *testing.T) {
	classifier := &fakeClassifier{prob: 0.2}
	store := cache.NewMemoryStore()

	a := NewSMS(classifier, deps(nil, nil, store))

	first, err := a.Analyze(context.Background(), "see you at lunch")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := a.Analyze(context.Background(), "see you at lunch")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if classifier.calls != 1 {
		t.Errorf("classifier calls = %d, want 1 (second run cached)", classifier.calls)
	}
	if second.TrustScore != first.TrustScore || second.Final != first.Final {
		t.Errorf("cached result differs: %d/%s vs %d/%s",
			second.TrustScore, second.Final, first.TrustScore, first.Final)
	}
}

func TestEmailDangerVerdict(t *testing.T) {
	provider := &fakeProvider{raw: `{"status":"DANGER","trust_score":10,"threat_types":["credential phishing"],"suspicious_urls":[],"reason":"fake bank notice"}`}

	a := NewEmail(deps(provider, nil, nil))

	res, err := a.Analyze(context.Background(), "From: bank@evil\n\nYour account is locked")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 10 || res.Final != model.StatusDanger {
		t.Errorf("got %d/%s, want 10/DANGER", res.TrustScore, res.Final)
	}
	if res.Target.ContentHash == "" {
		t.Error("email target must carry a content hash")
	}

	stage, ok := res.Stage(model.StageAIClassify)
	if !ok {
		t.Fatal("classification stage missing")
	}
	if stage.Penalty != 90 {
		t.Errorf("Penalty = %d, want 90", stage.Penalty)
	}
}

func TestEmailURLDelegationDemotes(t *testing.T) {
	provider := &fakeProvider{raw: `{"status":"SAFE","trust_score":90,"suspicious_urls":["http://check.example/x"],"reason":"looks fine"}`}
	scanner := &fakeScanner{score: 5, status: model.StatusDanger}

	a := NewEmail(deps(provider, scanner, nil))

	res, err := a.Analyze(context.Background(), "please review http://check.example/x")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 5 || res.Final != model.StatusDanger {
		t.Errorf("got %d/%s, want 5/DANGER (dragged down by link)", res.TrustScore, res.Final)
	}

	links, ok := res.Stage(model.StageLinks)
	if !ok {
		t.Fatal("links stage missing")
	}
	if links.Penalty != 85 {
		t.Errorf("links Penalty = %d, want 85", links.Penalty)
	}
}

func TestEmailProviderFailureKeepsNeutralScore(t *testing.T) {
	a := NewEmail(deps(&fakeProvider{err: errors.New("api down")}, nil, nil))

	res, err := a.Analyze(context.Background(), "some email")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 50 || res.Final != model.StatusSuspicious {
		t.Errorf("got %d/%s, want 50/SUSPICIOUS", res.TrustScore, res.Final)
	}
}

func TestQRNonURLPayloadQuishing(t *testing.T) {
	provider := &fakeProvider{raw: `{"phishing_probability":80,"risk_level":"high","confidence":90,"reason":"credential harvest pattern"}`}

	a := NewQR(nil, deps(provider, nil, nil))

	res, err := a.Analyze(context.Background(), "WIFI:T:WPA;S:FreeAirport;P:hunter2;;", "airport wifi", false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 20 || res.Final != model.StatusDanger {
		t.Errorf("got %d/%s, want 20/DANGER", res.TrustScore, res.Final)
	}

	stage, ok := res.Stage(model.StageAIClassify)
	if !ok {
		t.Fatal("quishing stage missing")
	}
	if stage.Status != model.StatusDanger || stage.Penalty != 80 {
		t.Errorf("quishing stage = %s/%d, want DANGER/80", stage.Status, stage.Penalty)
	}
}

func TestQRURLPayloadDelegates(t *testing.T) {
	scanner := &fakeScanner{score: 95, status: model.StatusSafe}

	// Comparison is skipped, so no provider call happens.
	a := NewQR(nil, deps(&fakeProvider{raw: `{}`}, scanner, nil))

	res, err := a.Analyze(context.Background(), "pay.example/checkout", "payment page", true)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 95 || res.Final != model.StatusSafe {
		t.Errorf("got %d/%s, want 95/SAFE", res.TrustScore, res.Final)
	}
	if scanner.calls != 1 {
		t.Errorf("scanner calls = %d, want 1", scanner.calls)
	}
	if res.Target.Channel != model.ChannelQR {
		t.Errorf("Channel = %s, want qr", res.Target.Channel)
	}
	if _, ok := res.Stage(model.StageExpectation); ok {
		t.Error("expectation stage should be absent when comparison is skipped")
	}
}

func TestQREmptyPayloadRejected(t *testing.T) {
	a := NewQR(nil, deps(nil, nil, nil))
	if _, err := a.Analyze(context.Background(), "  ", "menu", false); err == nil {
		t.Fatal("expected error for undecoded payload")
	}
}

func TestQRExpectationChangeForcesRecomputation(t *testing.T) {
	scanner := &fakeScanner{score: 95, status: model.StatusSafe}
	store := cache.NewMemoryStore()

	a := NewQR(nil, deps(nil, scanner, store))

	if _, err := a.Analyze(context.Background(), "https://pay.example/t", "restaurant menu", true); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := a.Analyze(context.Background(), "https://pay.example/t", "payment", true); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if scanner.calls != 2 {
		t.Errorf("scanner calls = %d, want 2 (expectation change is a cache miss)", scanner.calls)
	}

	if _, err := a.Analyze(context.Background(), "https://pay.example/t", "payment", true); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if scanner.calls != 2 {
		t.Errorf("scanner calls = %d, want 2 (unchanged expectation hits)", scanner.calls)
	}
}

func TestPayloadURL(t *testing.T) {
	tests := []struct {
		payload string
		wantURL string
		wantOK  bool
	}{
		{"https://x.example/a", "https://x.example/a", true},
		{"http://x.example", "http://x.example", true},
		{"x.example/menu", "https://x.example/menu", true},
		{"WIFI:T:WPA;S:net;P:pw;;", "", false},
		{"mailto:a@b.example", "", false},
		{"hello world", "", false},
		{"plaintext", "", false},
	}

	for _, tt := range tests {
		url, ok := payloadURL(tt.payload)
		if url != tt.wantURL || ok != tt.wantOK {
			t.Errorf("payloadURL(%q) = %q/%v, want %q/%v", tt.payload, url, ok, tt.wantURL, tt.wantOK)
		}
	}
}

func TestVoiceVishingVerdict(t *testing.T) {
	provider := &fakeProvider{raw: `{"status":"DANGER","trust_score":15,"threat_types":["prosecutor impersonation"],"reason":"caller demands wire transfer"}`}

	a := NewVoice(deps(provider, nil, nil))

	res, err := a.Analyze(context.Background(), "this is the prosecutor's office, transfer the funds now")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 15 || res.Final != model.StatusDanger {
		t.Errorf("got %d/%s, want 15/DANGER", res.TrustScore, res.Final)
	}
	if res.Message != "caller demands wire transfer" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Target.ContentHash == "" {
		t.Error("voice target must carry a content hash")
	}
}

func TestVoiceProviderFailureKeepsNeutralScore(t *testing.T) {
	a := NewVoice(deps(&fakeProvider{err: errors.New("api down")}, nil, nil))

	res, err := a.Analyze(context.Background(), "hello?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.TrustScore != 50 || res.Final != model.StatusSuspicious {
		t.Errorf("got %d/%s, want 50/SUSPICIOUS", res.TrustScore, res.Final)
	}
}
