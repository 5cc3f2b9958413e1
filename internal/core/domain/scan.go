package domain

import (
	"errors"
	"strings"
)

// ErrMalformedToken is returned for tokens that cannot be decoded at
// all. Decoding failures have no side effects.
var ErrMalformedToken = errors.New("malformed scan token")

// ScanToken is the decoded form of one physical label. Raw tokens look
// like PREFIX-REFERENCE-SEQUENCE; the reference itself may contain
// hyphens, in which case the middle segments are rejoined.
type ScanToken struct {
	Raw       string
	Prefix    string
	Reference string
	Sequence  string
	Category  Category
}

const minTokenSegments = 3

// ParseScanToken decodes a raw token string. It rejects a wrong
// segment count, empty segments and unknown category prefixes.
func ParseScanToken(raw string) (ScanToken, error) {
	segments := strings.Split(strings.TrimSpace(raw), "-")
	if len(segments) < minTokenSegments {
		return ScanToken{}, ErrMalformedToken
	}
	for _, s := range segments {
		if s == "" {
			return ScanToken{}, ErrMalformedToken
		}
	}

	prefix := strings.ToUpper(segments[0])
	category, ok := CategoryForPrefix(prefix)
	if !ok {
		return ScanToken{}, ErrMalformedToken
	}

	return ScanToken{
		Raw:       strings.TrimSpace(raw),
		Prefix:    prefix,
		Reference: strings.Join(segments[1:len(segments)-1], "-"),
		Sequence:  segments[len(segments)-1],
		Category:  category,
	}, nil
}

// FailureKind names the outcome of a rejected operation. Kinds are
// part of the UI contract and rendered as user-facing feedback.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureMalformedToken FailureKind = "malformed_token"
	FailureNotFound       FailureKind = "not_found"
	FailureOutOfStock     FailureKind = "out_of_stock"
	FailureAlreadyUsed    FailureKind = "already_used"
	FailureBusy           FailureKind = "busy"
	FailureRateLimited    FailureKind = "rate_limited"
	FailureConflict       FailureKind = "conflict"
	FailureUnknown        FailureKind = "unknown"
)

// ScanResult is the structured outcome of one scan attempt. Errors
// never cross the core boundary for scans; callers branch on Kind.
type ScanResult struct {
	Success         bool        `json:"success"`
	ItemName        string      `json:"item_name,omitempty"`
	QuantityRemoved int         `json:"quantity_removed,omitempty"`
	Remaining       int         `json:"remaining,omitempty"`
	Kind            FailureKind `json:"error_kind,omitempty"`
	Message         string      `json:"message,omitempty"`
}
