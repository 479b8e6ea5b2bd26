// Package mock is a self-contained yellow agent backend for demos and
// tests. It serves the file namespace from memory and streams a scripted
// run that exercises the whole event vocabulary, including the pause/resume
// review leg.
package mock

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

type pendingDiff struct {
	File    string `json:"file"`
	OldCode string `json:"oldCode"`
	NewCode string `json:"newCode"`
}

// Server is an in-memory yellow backend.
type Server struct {
	mu      sync.Mutex
	files   map[string]string
	pending []pendingDiff
	// delay paces scripted events; tests set it to zero.
	delay time.Duration
}

// NewServer creates a mock backend seeded with a small project.
func NewServer() *Server {
	return &Server{
		files: map[string]string{
			"/package.json": "{\n  \"name\": \"demo\",\n  \"version\": \"0.1.0\"\n}\n",
			"/src/index.ts": "export function main() {\n  console.log(\"hello\");\n}\n",
			"/src/pay.ts":   "export function pay(amount: number) {\n  return amount;\n}\n",
		},
		delay: 150 * time.Millisecond,
	}
}

// SetDelay overrides the pacing between scripted events.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Handler returns the backend's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/yellow-agent/stream", s.handleStream)
	mux.HandleFunc("/api/yellow-agent/resume", s.handleResume)
	mux.HandleFunc("/api/yellow-agent/apply", s.handleApplyAll)
	mux.HandleFunc("/api/diff/approve", s.handleApprove)
	mux.HandleFunc("/files/tree", s.handleTree)
	mux.HandleFunc("/files/content", s.handleContent)
	mux.HandleFunc("/files", s.handleDelete)
	mux.HandleFunc("/api/terminal/exec", s.handleExec)
	mux.HandleFunc("/api/project/download", s.handleDownload)
	mux.HandleFunc("/upload", s.handleUpload)
	return mux
}

// Start serves the backend on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("mock yellow backend on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) pause() {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func sseHeaders(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	return flusher
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, yellow.HealthResponse{Status: "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req yellow.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher := sseHeaders(w)
	runID := fmt.Sprintf("run_%x", time.Now().UnixNano())

	ev := func(v map[string]any) {
		sendEvent(w, flusher, v)
		s.pause()
	}

	ev(map[string]any{"type": "run_started", "runId": runID, "prompt": req.Prompt})
	ev(map[string]any{"type": "thought", "runId": runID, "content": "Planning changes for: " + req.Prompt})
	ev(map[string]any{"type": "file_tree", "runId": runID, "tree": s.tree()})

	ev(map[string]any{"type": "tool_start", "runId": runID, "name": "scan"})
	ev(map[string]any{"type": "terminal", "runId": runID, "line": "$ scanning project..."})
	ev(map[string]any{"type": "tool_end", "runId": runID, "name": "scan", "status": "success"})

	s.mu.Lock()
	payContent := s.files["/src/pay.ts"]
	s.mu.Unlock()
	ev(map[string]any{"type": "file_content", "runId": runID, "path": "/src/pay.ts", "content": payContent})

	ev(map[string]any{"type": "build", "runId": runID, "status": "start"})
	ev(map[string]any{"type": "build", "runId": runID, "status": "output", "data": "tsc --noEmit"})
	ev(map[string]any{"type": "build", "runId": runID, "status": "success", "data": "build ok"})

	newPay := payContent + "\nexport function subscribe(amount: number) {\n  return pay(amount);\n}\n"
	s.mu.Lock()
	s.pending = []pendingDiff{{File: "/src/pay.ts", OldCode: payContent, NewCode: newPay}}
	s.mu.Unlock()

	ev(map[string]any{"type": "proposed_file", "runId": runID, "path": "/src/pay.ts", "content": newPay})
	ev(map[string]any{"type": "diff", "runId": runID, "file": "/src/pay.ts", "oldCode": payContent, "newCode": newPay})

	ev(map[string]any{"type": "awaiting_user_review", "runId": runID, "files": []string{"/src/pay.ts"}})
	ev(map[string]any{"type": "thought", "runId": runID, "content": "Waiting for user approval..."})
	sendEvent(w, flusher, map[string]any{"type": "run_finished", "runId": runID, "interrupted": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req yellow.ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if req.Approved {
		for _, d := range s.pending {
			s.files[d.File] = d.NewCode
		}
	}
	s.pending = nil
	s.mu.Unlock()

	flusher := sseHeaders(w)
	ev := func(v map[string]any) {
		sendEvent(w, flusher, v)
		s.pause()
	}

	if req.Approved {
		ev(map[string]any{"type": "thought", "runId": req.RunID, "content": "Changes approved, verifying build..."})
		ev(map[string]any{"type": "build", "runId": req.RunID, "status": "start"})
		ev(map[string]any{"type": "build", "runId": req.RunID, "status": "success", "data": "build ok"})
		ev(map[string]any{"type": "audit", "runId": req.RunID, "analysis": "No issues found in applied changes."})
	} else {
		ev(map[string]any{"type": "thought", "runId": req.RunID, "content": "Changes rejected, rolling back plan."})
	}
	sendEvent(w, flusher, map[string]any{"type": "run_finished", "runId": req.RunID})
}

func (s *Server) handleApplyAll(w http.ResponseWriter, r *http.Request) {
	var req yellow.ResolveAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	applied := 0
	if req.Approved {
		for _, d := range s.pending {
			s.files[d.File] = d.NewCode
			applied++
		}
	}
	s.pending = nil
	s.mu.Unlock()

	writeJSON(w, yellow.ResolveAllResponse{OK: true, Applied: applied})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req yellow.ResolveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	idx := -1
	for i, d := range s.pending {
		if d.File == req.File {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		http.Error(w, "no pending diff for file", http.StatusNotFound)
		return
	}
	d := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	if req.Approved {
		s.files[d.File] = d.NewCode
	}
	s.mu.Unlock()

	writeJSON(w, yellow.ResolveFileResponse{OK: true, Applied: req.Approved, File: d.File})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, yellow.TreeResponse{Tree: s.tree()})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		path := r.URL.Query().Get("path")
		s.mu.Lock()
		content, ok := s.files[path]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		writeJSON(w, yellow.FileContentResponse{Path: path, Content: content})
	case http.MethodPut:
		var req yellow.WriteFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.files[req.Path] = req.Content
		s.mu.Unlock()
		writeJSON(w, yellow.FileContentResponse{Path: req.Path, Content: req.Content})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	s.mu.Lock()
	delete(s.files, path)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"ok": true, "path": path})
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req yellow.ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Commands are not actually executed; echo a plausible transcript.
	writeJSON(w, yellow.ExecResponse{
		Stdout:   []string{"$ " + req.Command, "(mock) command not executed"},
		Stderr:   []string{},
		ExitCode: 0,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	files := make(map[string]string, len(s.files))
	for k, v := range s.files {
		files[k] = v
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for path, content := range files {
		f, err := zw.Create(strings.TrimPrefix(path, "/"))
		if err != nil {
			continue
		}
		f.Write([]byte(content))
	}
	zw.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="project.zip"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req yellow.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// tree builds the file tree from the in-memory namespace.
func (s *Server) tree() *yellow.FileNode {
	s.mu.Lock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	s.mu.Unlock()
	sort.Strings(paths)

	root := &yellow.FileNode{Path: "/", Name: "root", Kind: yellow.KindDir}
	dirs := map[string]*yellow.FileNode{"/": root}

	ensureDir := func(path string) *yellow.FileNode {
		if n, ok := dirs[path]; ok {
			return n
		}
		parts := strings.Split(strings.Trim(path, "/"), "/")
		cur := root
		curPath := ""
		for _, part := range parts {
			curPath += "/" + part
			n, ok := dirs[curPath]
			if !ok {
				n = &yellow.FileNode{Path: curPath, Name: part, Kind: yellow.KindDir}
				cur.Children = append(cur.Children, n)
				dirs[curPath] = n
			}
			cur = n
		}
		return cur
	}

	for _, p := range paths {
		dir := "/"
		name := strings.TrimPrefix(p, "/")
		if i := strings.LastIndex(p, "/"); i > 0 {
			dir = p[:i]
			name = p[i+1:]
		}
		parent := root
		if dir != "/" {
			parent = ensureDir(dir)
		}
		parent.Children = append(parent.Children, &yellow.FileNode{Path: p, Name: name, Kind: yellow.KindFile})
	}
	return root
}
