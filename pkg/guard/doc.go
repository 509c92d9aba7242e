// Package guard implements the validation gate that decides whether a URL,
// a header map, or a fully assembled shell command is safe to use.
//
// Every check is deterministic and synchronous, performs no I/O beyond a
// fire-and-forget audit log line on security rejections, and fails with a
// stable, human-readable message. The messages are part of the public
// contract: callers and tests match on them to distinguish "blocked by
// policy" from "transient failure".
//
// Three layers defend the shell fallback path independently: a character
// class check on raw inputs, an injection-pattern scan on header values,
// and a structural scan of the exact command line handed to the shell.
// Each layer is conservative; the command scan in particular may reject
// theoretically safe quoted constructs, but never admits an unquoted
// separator.
package guard
