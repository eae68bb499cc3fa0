package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/use-agent/buildharvest/models"
)

func TestDeliver_Signed(t *testing.T) {
	var gotSig string
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		if want := "sha256=" + Sign("s3cret", body); gotSig != want {
			t.Errorf("signature = %q, want %q", gotSig, want)
		}
		json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	ev := PassCompleted(&models.PassReport{RunID: "run-1", Catalog: 2})
	if err := Deliver(context.Background(), srv.URL, "s3cret", ev); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if got.Type != EventPassCompleted || got.RunID != "run-1" || got.Data.Catalog != 2 {
		t.Errorf("received %+v", got)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get(SignatureHeader); h != "" {
			t.Errorf("unexpected signature %q", h)
		}
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", PassCompleted(&models.PassReport{})); err != nil {
		t.Fatal(err)
	}
}

func TestNotify_Retries(t *testing.T) {
	orig := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = orig }()

	tests := []struct {
		name      string
		fails     int
		want      bool
		wantCalls int
	}{
		{"first try", 0, true, 1},
		{"after retry", 2, true, 3},
		{"exhausted", 5, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls <= tt.fails {
					w.WriteHeader(http.StatusBadGateway)
				}
			}))
			defer srv.Close()

			ok := Notify(context.Background(), srv.URL, "", PassCompleted(&models.PassReport{RunID: "r"}))
			if ok != tt.want || calls != tt.wantCalls {
				t.Errorf("Notify() = %v after %d calls, want %v after %d", ok, calls, tt.want, tt.wantCalls)
			}
		})
	}
}
