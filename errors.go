package apkparser

import (
	"errors"
	"strings"
)

// ErrPlainTextManifest is returned by DecodeXml when the input looks
// like an uncompiled textual XML document rather than the binary chunk
// format — some malformed or hand-built APKs ship AndroidManifest.xml this
// way. Callers that care may fall back to a plain XML parser; this module
// does not attempt to parse plaintext XML itself.
var ErrPlainTextManifest = errors.New("apkparser: input looks like plain-text XML, not binary XML")

// ErrNotResourceTable is returned when a buffer expected to hold
// resources.arsc does not start with the table chunk type.
var ErrNotResourceTable = errors.New("apkparser: not a resource table")

// ErrNotBinaryXml is returned when a buffer expected to hold a compiled XML
// document does not start with the XML chunk type (and did not match the
// plaintext sniff either).
var ErrNotBinaryXml = errors.New("apkparser: not a binary XML document")

// looksLikePlainXml sniffs the first bytes of a member for a textual XML
// prolog or a bare <manifest, the same heuristic as the teacher's
// ErrPlainTextManifest check.
func looksLikePlainXml(b []byte) bool {
	const sniffLen = 8
	if len(b) < sniffLen {
		return false
	}
	head := string(b[:sniffLen])
	return strings.HasPrefix(head, "<?xml ") || strings.HasPrefix(head, "<manif")
}
