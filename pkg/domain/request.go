package domain

// RequestOptions carries the caller-supplied parts of a guarded fetch
// beyond the URL itself. The header map is passed by reference into
// validation and is never mutated by this subsystem.
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    string
}

// Response is the normalized result of a guarded fetch, regardless of
// whether the native path or the curl fallback produced it. HTTP error
// statuses are not errors at this layer; they pass through unchanged.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	// FromFallback is true when the body was captured from the shell-invoked
	// client rather than the native HTTP client. The fallback cannot observe
	// the status line, so StatusCode is reported as 200 on that path.
	FromFallback bool
}

// ExecResult captures the output streams of a shell-executed command.
type ExecResult struct {
	Stdout string
	Stderr string
}
