// Package domain holds the shared request/response types and the error
// taxonomy for the guarded fetch layer.
//
// Errors fall into two classes with deliberately different handling:
// security-policy errors (never retried, prefixed so callers can match on
// them) and transport errors (retried up to the configured budget and
// surfaced unmodified after exhaustion). The types here keep that split
// explicit so the fetcher and its callers cannot confuse a policy block
// with a transient failure.
package domain
