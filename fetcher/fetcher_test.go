package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/buildharvest/models"
)

func TestGet_SelfSignedServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "harvest-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write([]byte("Step #1: build failed\n"))
	}))
	defer srv.Close()

	body, err := New().Get(context.Background(), srv.URL+"/log-1.txt",
		map[string]string{"User-Agent": "harvest-test"}, 5*time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "Step #1: build failed\n" {
		t.Errorf("body = %q", body)
	}
}

func TestGet_ErrorStatus(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New().Get(context.Background(), srv.URL+"/missing.txt", nil, 5*time.Second)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if code := models.CodeOf(err); code != models.ErrCodeFetch {
		t.Errorf("code = %q, want %q", code, models.ErrCodeFetch)
	}
}

func TestGet_BodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", 15, false},
		{"at limit", 16, false},
		{"one byte over", 17, true},
		{"far over", 4096, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("x", tt.size)))
			}))
			defer srv.Close()

			f := New()
			f.maxBody = 16
			body, err := f.Get(context.Background(), srv.URL+"/log-big.txt", nil, 5*time.Second)
			if tt.wantErr {
				if models.CodeOf(err) != models.ErrCodeFetch {
					t.Fatalf("err = %v, want %s", err, models.ErrCodeFetch)
				}
				if body != nil {
					t.Errorf("got %d bytes alongside the error", len(body))
				}
				return
			}
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(body) != tt.size {
				t.Errorf("len(body) = %d, want %d", len(body), tt.size)
			}
		})
	}
}
