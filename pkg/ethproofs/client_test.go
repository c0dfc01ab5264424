package ethproofs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestClientQueueProofSucceedsOnFirstTry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q, want Bearer test-token", got)
		}
		if r.URL.Path != "/proofs/queued" {
			t.Errorf("path = %q, want /proofs/queued", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", 7, nil)
	if err := client.QueueProof(context.Background(), 100); err != nil {
		t.Fatalf("QueueProof: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server received %d calls, want 1", got)
	}
}

func TestClientRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", 1, nil)
	if err := client.ProvingProof(context.Background(), 50); err != nil {
		t.Fatalf("ProvingProof: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server received %d calls, want 3 (2 failures + 1 success)", got)
	}
}

func TestClientGivesUpAfterMaxAttemptsOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", 1, nil)
	err := client.QueueProof(context.Background(), 1)
	if err == nil {
		t.Fatalf("QueueProof = nil error, want failure after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != maxAttempts {
		t.Errorf("server received %d calls, want %d", got, maxAttempts)
	}
}

func TestClientDoesNotRetryOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", 1, nil)
	err := client.QueueProof(context.Background(), 1)
	if err == nil {
		t.Fatalf("QueueProof = nil error, want failure on 400")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server received %d calls, want 1 (400 is not retryable)", got)
	}
}

func TestClientSendProofEncodesAndAuthenticates(t *testing.T) {
	var bodyPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bodyPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", 3, nil)
	err := client.SendProof(context.Background(), 200, 1500, 900000, []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("SendProof: %v", err)
	}
	if bodyPath != "/proofs/proved" {
		t.Errorf("path = %q, want /proofs/proved", bodyPath)
	}
}
