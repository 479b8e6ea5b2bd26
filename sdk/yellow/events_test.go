package yellow_test

import (
	"testing"

	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		check   func(t *testing.T, ev *yellow.Event)
	}{
		{
			name:    "diff",
			payload: `{"type":"diff","runId":"r1","file":"/a.ts","oldCode":"x","newCode":"y"}`,
			check: func(t *testing.T, ev *yellow.Event) {
				if ev.Type != yellow.EventDiff || ev.RunID != "r1" || ev.File != "/a.ts" {
					t.Errorf("decoded %+v", ev)
				}
				if ev.OldCode != "x" || ev.NewCode != "y" {
					t.Errorf("codes = %q/%q", ev.OldCode, ev.NewCode)
				}
			},
		},
		{
			name:    "run finished interrupted",
			payload: `{"type":"run_finished","runId":"r1","interrupted":true}`,
			check: func(t *testing.T, ev *yellow.Event) {
				if !ev.Interrupted {
					t.Error("interrupted flag lost")
				}
			},
		},
		{
			name:    "file tree",
			payload: `{"type":"file_tree","tree":{"path":"/","name":"root","kind":"dir","children":[{"path":"/a","name":"a","kind":"file"}]}}`,
			check: func(t *testing.T, ev *yellow.Event) {
				if ev.Tree == nil || !ev.Tree.IsDir() || len(ev.Tree.Children) != 1 {
					t.Errorf("tree = %+v", ev.Tree)
				}
			},
		},
		{
			name:    "unknown type still decodes",
			payload: `{"type":"telemetry_v2","runId":"r1"}`,
			check: func(t *testing.T, ev *yellow.Event) {
				if ev.Type != "telemetry_v2" {
					t.Errorf("type = %q", ev.Type)
				}
			},
		},
		{
			name:    "raw payload retained",
			payload: `{"type":"thought","content":"hi","extra_field":42}`,
			check: func(t *testing.T, ev *yellow.Event) {
				if string(ev.Raw) != `{"type":"thought","content":"hi","extra_field":42}` {
					t.Errorf("raw = %s", ev.Raw)
				}
			},
		},
		{name: "not json", payload: `{nope`, wantErr: true},
		{name: "missing type", payload: `{"runId":"r1"}`, wantErr: true},
		{name: "empty type", payload: `{"type":""}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := yellow.DecodeEvent([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, ev)
		})
	}
}

func TestFileNodeWalk(t *testing.T) {
	root := &yellow.FileNode{
		Path: "/", Name: "root", Kind: yellow.KindDir,
		Children: []*yellow.FileNode{
			{Path: "/src", Name: "src", Kind: yellow.KindDir, Children: []*yellow.FileNode{
				{Path: "/src/a.ts", Name: "a.ts", Kind: yellow.KindFile},
			}},
			{Path: "/b.ts", Name: "b.ts", Kind: yellow.KindFile},
		},
	}

	var visited []string
	root.Walk(func(n *yellow.FileNode) { visited = append(visited, n.Path) })

	want := []string{"/", "/src", "/src/a.ts", "/b.ts"}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}
