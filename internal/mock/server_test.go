package mock_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hugemartyr/yellowbench/internal/mock"
	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

func newTestBackend(t *testing.T) *yellow.Client {
	t.Helper()
	s := mock.NewServer()
	s.SetDelay(0)
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)
	return yellow.NewClient(server.URL)
}

func drain(t *testing.T, events <-chan *yellow.Event, errs <-chan error) []*yellow.Event {
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
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not finish")
		}
	}
	return got
}

func byType(events []*yellow.Event) map[string][]*yellow.Event {
	m := map[string][]*yellow.Event{}
	for _, ev := range events {
		m[ev.Type] = append(m[ev.Type], ev)
	}
	return m
}

func TestScriptedRunPausesForReview(t *testing.T) {
	client := newTestBackend(t)
	events, errs, err := client.Invoke(context.Background(), "add subscriptions")
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, events, errs)
	m := byType(got)

	if len(m[yellow.EventRunStarted]) != 1 {
		t.Fatal("missing run_started")
	}
	runID := m[yellow.EventRunStarted][0].RunID
	if runID == "" {
		t.Fatal("run_started carries no runId")
	}
	for _, ev := range got {
		if ev.RunID != runID {
			t.Errorf("%s event carries runId %q, want %q", ev.Type, ev.RunID, runID)
		}
	}

	// The proposal is announced both ways for old and new consumers.
	if len(m[yellow.EventProposedFile]) != 1 || len(m[yellow.EventDiff]) != 1 {
		t.Error("proposal must be emitted as both proposed_file and diff")
	}
	d := m[yellow.EventDiff][0]
	if d.File != "/src/pay.ts" || !strings.Contains(d.NewCode, "subscribe") {
		t.Errorf("diff = %+v", d)
	}

	if len(m[yellow.EventAwaitingReview]) != 1 {
		t.Fatal("missing awaiting_user_review")
	}
	last := got[len(got)-1]
	if last.Type != yellow.EventRunFinished || !last.Interrupted {
		t.Errorf("last event = %+v, want interrupted run_finished", last)
	}
}

func TestApprovedResumeAppliesPending(t *testing.T) {
	client := newTestBackend(t)
	events, errs, err := client.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, events, errs)
	runID := got[0].RunID

	events, errs, err = client.Resume(context.Background(), runID, true)
	if err != nil {
		t.Fatal(err)
	}
	cont := drain(t, events, errs)
	m := byType(cont)

	if len(m[yellow.EventAudit]) != 1 {
		t.Error("approved continuation must emit an audit")
	}
	last := cont[len(cont)-1]
	if last.Type != yellow.EventRunFinished || last.Interrupted {
		t.Errorf("last event = %+v, want final run_finished", last)
	}

	content, err := client.FileContent(context.Background(), "/src/pay.ts")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content.Content, "subscribe") {
		t.Error("approved pending diff was not applied to the file")
	}
}

func TestRejectedResumeLeavesFilesAlone(t *testing.T) {
	client := newTestBackend(t)
	events, errs, err := client.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, events, errs)
	runID := got[0].RunID

	events, errs, err = client.Resume(context.Background(), runID, false)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events, errs)

	content, err := client.FileContent(context.Background(), "/src/pay.ts")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(content.Content, "subscribe") {
		t.Error("rejected pending diff must not be applied")
	}

	// The pending set is cleared either way.
	_, err = client.ResolveFile(context.Background(), yellow.ResolveFileRequest{File: "/src/pay.ts", Approved: true})
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("resolve after reject = %v, want 404", err)
	}
}

func TestResolveAllClearsPending(t *testing.T) {
	client := newTestBackend(t)
	events, errs, err := client.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events, errs)

	resp, err := client.ResolveAll(context.Background(), yellow.ResolveAllRequest{Approved: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Applied != 1 {
		t.Errorf("applied = %d, want 1", resp.Applied)
	}

	resp, err = client.ResolveAll(context.Background(), yellow.ResolveAllRequest{Approved: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Applied != 0 {
		t.Errorf("second apply = %d, want 0", resp.Applied)
	}
}

func TestFileNamespace(t *testing.T) {
	client := newTestBackend(t)
	ctx := context.Background()

	if err := client.WriteFile(ctx, "/docs/readme.md", "# hi\n"); err != nil {
		t.Fatal(err)
	}
	tree, err := client.FileTree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	tree.Walk(func(n *yellow.FileNode) {
		if n.Path == "/docs/readme.md" && !n.IsDir() {
			found = true
		}
	})
	if !found {
		t.Error("written file missing from tree")
	}

	if err := client.DeleteFile(ctx, "/docs/readme.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.FileContent(ctx, "/docs/readme.md"); err == nil {
		t.Error("deleted file still readable")
	}
}

func TestDownloadIsValidZip(t *testing.T) {
	client := newTestBackend(t)
	data, err := client.Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["package.json"] || !names["src/pay.ts"] {
		t.Errorf("archive entries = %v", names)
	}
}

func TestHealth(t *testing.T) {
	client := newTestBackend(t)
	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}
