package sidecar

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"photoscore-server/internal/domain/critique"
	"photoscore-server/internal/platform/config"
	platformtesting "photoscore-server/internal/platform/testing"
)

func testSidecarConfig(url string) *config.SidecarConfig {
	return &config.SidecarConfig{
		WebhookURL:       url,
		ImagePolicy:      config.SidecarImageNone,
		ThumbnailMaxEdge: 64,
		QueueSize:        16,
		Workers:          2,
		Timeout:          2 * time.Second,
	}
}

func jpegFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func intPtr(v int) *int { return &v }

func analysisFixture(t *testing.T) (*critique.AnalysisRequest, *critique.AnalysisResult) {
	t.Helper()
	raw := jpegFixture(t, 320, 240)
	req := &critique.AnalysisRequest{
		RequestID:   "r1",
		ImageBytes:  raw,
		ImageBase64: base64.StdEncoding.EncodeToString(raw),
		Name:        "홍길동",
		Contact:     "hong@example.com",
		Consent:     true,
		ClientID:    "c1",
		VisitorID:   "v1",
	}
	result := &critique.AnalysisResult{
		IsValid:            true,
		FigureScore:        intPtr(80),
		BackgroundScore:    intPtr(60),
		VibeScore:          intPtr(70),
		FigureCritique:     "a",
		BackgroundCritique: "b",
		VibeCritique:       "c",
		FinalCritique:      "d",
	}
	return req, result
}

func TestPublisher_DeliversRecords(t *testing.T) {
	var got Record
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal webhook body: %v", err)
		}
	}))
	defer server.Close()

	p := NewPublisher(testSidecarConfig(server.URL), platformtesting.SetupTestLogger(t))
	p.Start(context.Background())

	req, result := analysisFixture(t)
	p.Publish(p.BuildRecord(req, result))
	p.Stop()

	if calls.Load() != 1 {
		t.Fatalf("expected one webhook call, got %d", calls.Load())
	}
	if got.Action != "complete" || got.RequestID != "r1" {
		t.Errorf("unexpected record header: %+v", got)
	}
	if got.Consent != "Y" {
		t.Errorf("expected consent Y, got %q", got.Consent)
	}
	if got.FigureScore == nil || *got.FigureScore != 80 {
		t.Errorf("expected figureScore 80, got %v", got.FigureScore)
	}
	if got.Timestamp == "" {
		t.Error("expected default timestamp")
	}
}

func TestPublisher_FailingWebhookDoesNotAffectCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewPublisher(testSidecarConfig(server.URL), platformtesting.SetupTestLogger(t))
	p.Start(context.Background())

	req, result := analysisFixture(t)
	p.Publish(p.BuildRecord(req, result))
	p.Stop()
	// Reaching here without error or panic is the assertion.
}

func TestPublisher_DisabledMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	cfg := testSidecarConfig(server.URL)
	cfg.WebhookURL = ""
	p := NewPublisher(cfg, platformtesting.SetupTestLogger(t))
	p.Start(context.Background())

	req, result := analysisFixture(t)
	p.Publish(p.BuildRecord(req, result))
	p.Stop()

	if calls.Load() != 0 {
		t.Fatalf("disabled sidecar made %d calls", calls.Load())
	}
	if err := p.Deliver(context.Background(), Record{}); err == nil {
		t.Error("expected Deliver to fail when disabled")
	}
}

func TestPublisher_DrainsAfterContextCancel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	p := NewPublisher(testSidecarConfig(server.URL), platformtesting.SetupTestLogger(t))

	// Shutdown cancels the lifecycle context before Stop runs; records
	// already queued must still be delivered.
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	req, result := analysisFixture(t)
	p.Publish(p.BuildRecord(req, result))
	p.Stop()

	if calls.Load() != 1 {
		t.Fatalf("expected queued record delivered after cancel, got %d calls", calls.Load())
	}
}

func TestPublisher_FullQueueDropsSilently(t *testing.T) {
	cfg := testSidecarConfig("http://127.0.0.1:1")
	cfg.QueueSize = 1
	p := NewPublisher(cfg, platformtesting.SetupTestLogger(t))
	// No Start: nothing drains the queue, so the second push must drop.

	req, result := analysisFixture(t)
	record := p.BuildRecord(req, result)
	p.Publish(record)
	p.Publish(record)

	if got := p.queue.Len(); got != 1 {
		t.Fatalf("expected 1 queued record, got %d", got)
	}
}

func TestBuildRecord_ImagePolicies(t *testing.T) {
	req, result := analysisFixture(t)

	t.Run("none", func(t *testing.T) {
		p := NewPublisher(testSidecarConfig("http://x"), platformtesting.SetupTestLogger(t))
		if record := p.BuildRecord(req, result); record.Image != "" {
			t.Error("policy none must not attach an image")
		}
	})

	t.Run("full", func(t *testing.T) {
		cfg := testSidecarConfig("http://x")
		cfg.ImagePolicy = config.SidecarImageFull
		p := NewPublisher(cfg, platformtesting.SetupTestLogger(t))
		if record := p.BuildRecord(req, result); record.Image != req.ImageBase64 {
			t.Error("policy full must attach the original payload")
		}
	})

	t.Run("thumbnail", func(t *testing.T) {
		cfg := testSidecarConfig("http://x")
		cfg.ImagePolicy = config.SidecarImageThumbnail
		p := NewPublisher(cfg, platformtesting.SetupTestLogger(t))
		record := p.BuildRecord(req, result)
		if record.Image == "" {
			t.Fatal("policy thumbnail must attach an image")
		}
		if len(record.Image) >= len(req.ImageBase64) {
			t.Error("thumbnail should be smaller than the original")
		}
	})

	t.Run("thumbnail of garbage degrades to none", func(t *testing.T) {
		cfg := testSidecarConfig("http://x")
		cfg.ImagePolicy = config.SidecarImageThumbnail
		p := NewPublisher(cfg, platformtesting.SetupTestLogger(t))
		broken := *req
		broken.ImageBytes = []byte("not an image")
		if record := p.BuildRecord(&broken, result); record.Image != "" {
			t.Error("undecodable image must be omitted, not fail the record")
		}
	})
}

func TestBuildRecord_InvalidResultCarriesNoScores(t *testing.T) {
	req, _ := analysisFixture(t)
	req.Consent = false
	result := &critique.AnalysisResult{IsValid: false, Reason: "그림 같아요"}

	p := NewPublisher(testSidecarConfig("http://x"), platformtesting.SetupTestLogger(t))
	record := p.BuildRecord(req, result)

	if record.FigureScore != nil || record.BackgroundScore != nil || record.VibeScore != nil {
		t.Error("invalid result must not carry scores")
	}
	if record.Consent != "N" {
		t.Errorf("expected consent N, got %q", record.Consent)
	}
}

func TestSeoulTimestamp(t *testing.T) {
	utc := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	if got := seoulTimestamp(utc); got != "2024-03-02 00:00:00" {
		t.Errorf("unexpected Seoul timestamp: %q", got)
	}
}
