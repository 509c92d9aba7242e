// Package fetcher orchestrates one logical guarded fetch across multiple
// physical attempts.
//
// Every attempt is gated by the validator before any I/O happens: first the
// URL and headers, then (if the native HTTP path fails and the curl
// fallback is assembled) the exact command string handed to the shell.
// Validation failures are terminal and never retried; transport failures
// are retried with exponential backoff up to a fixed budget. Attempts run
// strictly sequentially and all waits are context-aware.
package fetcher
