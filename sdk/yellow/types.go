package yellow

// FileNode is one entry in the sandbox file tree. Directories carry their
// children in order; files have none. The tree is always sent whole.
type FileNode struct {
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Children []*FileNode `json:"children,omitempty"`
}

// FileNode kinds.
const (
	KindFile = "file"
	KindDir  = "dir"
)

// IsDir reports whether the node is a directory.
func (n *FileNode) IsDir() bool {
	return n != nil && n.Kind == KindDir
}

// Walk visits the node and all descendants depth-first.
func (n *FileNode) Walk(fn func(*FileNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// PromptRequest starts an agent invocation.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ResumeRequest continues a paused run after the review decision.
type ResumeRequest struct {
	RunID    string `json:"runId"`
	Approved bool   `json:"approved"`
}

// ResolveAllRequest resolves every pending diff at once.
type ResolveAllRequest struct {
	RunID    string `json:"runId,omitempty"`
	Approved bool   `json:"approved"`
}

// ResolveAllResponse reports how many diffs the server applied.
type ResolveAllResponse struct {
	OK      bool `json:"ok"`
	Applied int  `json:"applied"`
}

// ResolveFileRequest resolves the pending diff for a single file.
type ResolveFileRequest struct {
	RunID    string `json:"runId,omitempty"`
	File     string `json:"file"`
	Approved bool   `json:"approved"`
}

// ResolveFileResponse reports the outcome for a single file.
type ResolveFileResponse struct {
	OK      bool   `json:"ok"`
	Applied bool   `json:"applied"`
	File    string `json:"file"`
}

// TreeResponse wraps the file tree endpoint payload.
type TreeResponse struct {
	Tree *FileNode `json:"tree"`
}

// FileContentResponse is the payload of the file read endpoint. Content may
// hold a placeholder error string when the server could not read the file.
type FileContentResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileRequest persists content to a sandbox path.
type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UploadRequest ingests a project into the sandbox from GitHub.
type UploadRequest struct {
	GitHubURL string `json:"github_url"`
}

// ExecRequest runs a shell command inside the sandbox root.
type ExecRequest struct {
	Command string `json:"command"`
}

// ExecResponse carries the captured command output.
type ExecResponse struct {
	Stdout   []string `json:"stdout"`
	Stderr   []string `json:"stderr"`
	ExitCode int      `json:"exitCode"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status string `json:"status"`
}
