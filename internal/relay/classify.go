// Package relay implements the withdrawal request pipeline: structural
// validation, asset gating, local proof verification, double-spend
// checking, and ledger submission with bounded retry.
package relay

import (
	"fmt"
	"strings"
)

// Category classifies a request failure. Exactly one category applies to
// any failure; matching runs most specific first.
type Category string

const (
	// CategoryValidation rejects malformed or cryptographically invalid input.
	// Never retried; always the caller's fault.
	CategoryValidation Category = "validation"

	// CategoryStateConflict covers already spent, processed or duplicate actions. Never
	// retried; the action is moot.
	CategoryStateConflict Category = "state_conflict"

	// CategoryResource covers insufficient funds. Never retried; requires
	// caller action.
	CategoryResource Category = "resource"

	// CategoryTransientNetwork covers timeouts, resets, rate limiting,
	// gateway errors, staleness. Retried with backoff.
	CategoryTransientNetwork Category = "transient_network"

	// CategoryUnknown is anything else. Retried (an unknown failure might
	// be transient) and logged prominently.
	CategoryUnknown Category = "unknown"
)

// Retryable reports whether submissions failing with this category should
// be retried.
func (c Category) Retryable() bool {
	return c == CategoryTransientNetwork || c == CategoryUnknown
}

// classificationTable is ordered: the first category whose pattern matches
// wins, so validation beats a transient-looking substring in the same
// message.
var classificationTable = []struct {
	category Category
	patterns []string
}{
	{CategoryValidation, []string{
		"invalid proof",
		"proof verification failed",
		"invalid signature",
		"signature verification failed",
		"invalid account",
		"invalid instruction",
		"simulation failed",
		"transaction simulation",
		"custom program error",
	}},
	{CategoryStateConflict, []string{
		"already spent",
		"already processed",
		"already been processed",
		"already in use",
		"already exists",
		"duplicate transaction",
		"duplicate",
	}},
	{CategoryResource, []string{
		"insufficient funds",
		"insufficient balance",
		"insufficient lamports",
	}},
	{CategoryTransientNetwork, []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"rate limit",
		"too many requests",
		"429",
		"502",
		"503",
		"504",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
		"blockhash expired",
		"expired blockhash",
		"blockhash not found",
		"node is behind",
		"temporarily unavailable",
	}},
}

// Classify maps a submission failure to exactly one category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, row := range classificationTable {
		for _, p := range row.patterns {
			if strings.Contains(msg, p) {
				return row.category
			}
		}
	}
	return CategoryUnknown
}

// RejectError carries the rejection category through the pipeline to the
// HTTP layer, which maps it to a status code without leaking internals.
type RejectError struct {
	Category Category
	Err      error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

func reject(cat Category, format string, args ...any) *RejectError {
	return &RejectError{Category: cat, Err: fmt.Errorf(format, args...)}
}
