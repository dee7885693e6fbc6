package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/state":
			w.Write([]byte(`{"instruction":"Walk straight for 4.0 meters.","distance":4,"arrived":false}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/commands":
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["action"] == "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "no route", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := context.Background()

	var state struct {
		Instruction string  `json:"instruction"`
		Distance    float64 `json:"distance"`
	}
	if err := c.GetJSON(ctx, "/api/state", &state); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if state.Distance != 4 || state.Instruction == "" {
		t.Errorf("state = %+v", state)
	}

	if err := c.PostJSON(ctx, "/api/commands", map[string]string{"action": "stop_navigation"}, nil); err != nil {
		t.Errorf("PostJSON() error = %v", err)
	}

	// 204 with an out value decodes nothing.
	var out map[string]any
	if err := c.PostJSON(ctx, "/api/commands", map[string]string{}, &out); err != nil {
		t.Errorf("PostJSON() 204 error = %v", err)
	}
	if out != nil {
		t.Errorf("out = %v, want nil", out)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(srv.URL, 0).GetJSON(context.Background(), "/api/state", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Body != "queue full" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(srv.URL, time.Second).GetJSON(ctx, "/", nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}
