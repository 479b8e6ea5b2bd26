package yellow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

func collect(t *testing.T, events <-chan *yellow.Event, errs <-chan error) []*yellow.Event {
	t.Helper()
	var got []*yellow.Event
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			got = append(got, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				t.Fatalf("stream error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("stream did not finish")
		}
	}
	return got
}

func TestInvokeStreamsEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/yellow-agent/stream" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req yellow.PromptRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt != "do the thing" {
			t.Errorf("prompt = %q", req.Prompt)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"run_started\",\"runId\":\"r1\"}\n\n")
		fmt.Fprint(w, ": keep-alive\n")
		fmt.Fprint(w, "event: message\n")
		fmt.Fprint(w, "data: {\"type\":\"thought\",\"content\":\"hi\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"run_finished\",\"runId\":\"r1\"}\n\n")
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	events, errs, err := client.Invoke(context.Background(), "do the thing")
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, events, errs)
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Type != yellow.EventRunStarted || got[1].Content != "hi" || got[2].Type != yellow.EventRunFinished {
		t.Errorf("unexpected sequence: %+v", got)
	}
}

func TestInvokeSkipsMalformedFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"run_started\",\"runId\":\"r1\"}\n\n")
		fmt.Fprint(w, "data: {broken json\n\n")
		fmt.Fprint(w, "data: {\"no_type\":true}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"run_finished\",\"runId\":\"r1\"}\n\n")
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	events, errs, err := client.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, events, errs)
	if len(got) != 2 {
		t.Fatalf("events = %d, want the 2 well-formed frames", len(got))
	}
	if got[1].Type != yellow.EventRunFinished {
		t.Errorf("last event = %q", got[1].Type)
	}
}

func TestInvokeJoinsMultilineData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// One logical frame split across two data lines.
		fmt.Fprint(w, "data: {\"type\":\"thought\",\n")
		fmt.Fprint(w, "data: \"content\":\"spread out\"}\n\n")
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	events, errs, err := client.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, events, errs)
	if len(got) != 1 || got[0].Content != "spread out" {
		t.Fatalf("got %+v, want one joined thought", got)
	}
}

func TestInvokeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent busy", http.StatusConflict)
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	_, _, err := client.Invoke(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 409") || !strings.Contains(err.Error(), "agent busy") {
		t.Errorf("error = %v", err)
	}
}

func TestResumeSendsDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/yellow-agent/resume" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req yellow.ResumeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.RunID != "r1" || !req.Approved {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"run_finished\",\"runId\":\"r1\"}\n\n")
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	events, errs, err := client.Resume(context.Background(), "r1", true)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, events, errs)
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
}

func TestAcknowledgeAllIsDiscardVerb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/yellow-agent/apply" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req yellow.ResolveAllRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Approved {
			t.Error("acknowledge must carry approved=false")
		}
		if req.RunID != "r1" {
			t.Errorf("runId = %q", req.RunID)
		}
		json.NewEncoder(w).Encode(yellow.ResolveAllResponse{OK: true})
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	if err := client.AcknowledgeAll(context.Background(), "r1"); err != nil {
		t.Fatal(err)
	}
}

func TestFileContentEscapesPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("path"); got != "/dir with space/a.ts" {
			t.Errorf("path param = %q", got)
		}
		json.NewEncoder(w).Encode(yellow.FileContentResponse{Path: "/dir with space/a.ts", Content: "x"})
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	resp, err := client.FileContent(context.Background(), "/dir with space/a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "x" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestWriteFileRequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/files/content" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req yellow.WriteFileRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Path != "/a.ts" || req.Content != "body" {
			t.Errorf("request = %+v", req)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	if err := client.WriteFile(context.Background(), "/a.ts", "body"); err != nil {
		t.Fatal(err)
	}
}

func TestRequestErrorFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no pending diff"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	_, err := client.ResolveFile(context.Background(), yellow.ResolveFileRequest{File: "/a.ts", Approved: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("error = %v", err)
	}
}

func TestExec(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/terminal/exec" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req yellow.ExecRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Command != "ls" {
			t.Errorf("command = %q", req.Command)
		}
		json.NewEncoder(w).Encode(yellow.ExecResponse{Stdout: []string{"a.ts"}, ExitCode: 0})
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	resp, err := client.Exec(context.Background(), "ls")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Stdout) != 1 || resp.Stdout[0] != "a.ts" {
		t.Errorf("stdout = %v", resp.Stdout)
	}
}

func TestDownload(t *testing.T) {
	payload := []byte("PK\x03\x04zipbytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/project/download" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(payload)
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL)
	data, err := client.Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Errorf("data = %q", data)
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want no doubled slash", r.URL.Path)
		}
		json.NewEncoder(w).Encode(yellow.HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	client := yellow.NewClient(server.URL + "/")
	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}
