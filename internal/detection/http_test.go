package detection_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cognitedata/annotator/internal/detection"
)

func newClient(t *testing.T, handler http.HandlerFunc) detection.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &detection.Config{BaseURL: server.URL}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return detection.NewHTTP(cfg, logger)
}

func TestSubmitReturnsHandle(t *testing.T) {
	var received detection.SubmitRequest

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/detect" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-42"})
	})

	handle, err := client.Submit(context.Background(), detection.SubmitRequest{
		Documents:  []detection.DocumentRef{{DocumentID: "doc-1"}},
		Candidates: []detection.Candidate{{ID: "e1", Texts: []string{"FT-101A"}}},
		Mode:       detection.ModeEntities,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if handle != "job-42" {
		t.Errorf("handle = %s, want job-42", handle)
	}
	if received.Mode != detection.ModeEntities || len(received.Documents) != 1 {
		t.Errorf("request not forwarded: %+v", received)
	}
}

func TestSubmitEmptyJobIDIsTransient(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := client.Submit(context.Background(), detection.SubmitRequest{})
	if !errors.Is(err, detection.ErrTransient) {
		t.Errorf("empty job id = %v, want ErrTransient", err)
	}
}

func TestPollDecodesResult(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/job-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(detection.Poll{
			State: detection.StateCompleted,
			Matches: []detection.Match{
				{DocumentID: "doc-1", Text: "FT-101A", Confidence: 0.9, EntityIDs: []string{"e1"}},
			},
		})
	})

	poll, err := client.Poll(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if poll.State != detection.StateCompleted || len(poll.Matches) != 1 {
		t.Errorf("poll = %+v", poll)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, detection.ErrJobNotFound},
		{"throttled", http.StatusTooManyRequests, detection.ErrTransient},
		{"server error", http.StatusBadGateway, detection.ErrTransient},
		{"bad request", http.StatusBadRequest, detection.ErrPermanent},
		{"unauthorized", http.StatusUnauthorized, detection.ErrPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := client.Poll(context.Background(), "job-1")
			if !errors.Is(err, tc.want) {
				t.Errorf("status %d = %v, want %v", tc.status, err, tc.want)
			}
		})
	}
}

func TestAPIKeyHeader(t *testing.T) {
	t.Setenv("TEST_DETECTION_KEY", "secret")

	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	}))
	defer server.Close()

	cfg := &detection.Config{BaseURL: server.URL, APIKeyEnv: "TEST_DETECTION_KEY"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := detection.NewHTTP(cfg, logger)

	if _, err := client.Submit(context.Background(), detection.SubmitRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api-key header = %q, want secret", gotKey)
	}
}

func TestStubLifecycle(t *testing.T) {
	ctx := context.Background()
	stub := detection.NewStub()

	handle, err := stub.Submit(ctx, detection.SubmitRequest{Mode: detection.ModePatterns})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	poll, err := stub.Poll(ctx, handle)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if poll.State != detection.StateRunning {
		t.Errorf("unscripted job state = %s, want Running", poll.State)
	}

	stub.Fail(handle, "bad request")
	poll, _ = stub.Poll(ctx, handle)
	if poll.State != detection.StateFailed || !poll.Permanent {
		t.Errorf("Fail scripted %+v, want permanent failure", poll)
	}

	if _, err := stub.Poll(ctx, "unknown"); !errors.Is(err, detection.ErrJobNotFound) {
		t.Errorf("unknown handle = %v, want ErrJobNotFound", err)
	}
}
