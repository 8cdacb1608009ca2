// Package deduplication provides AI-powered duplicate detection for extracted issues.
//
// # Overview
//
// Before a file's issues are published, the Filter compares them against a
// snapshot of the open board items taken once at the start of the run. The
// snapshot is never refreshed, so items created earlier in the same run are
// not seen by later checks.
//
// # Protocol
//
// One oracle call per file. The prompt lists existing items as "#iid: title"
// and candidates as "NEW k: title". The reply is expected to contain one line
// per candidate:
//
//	NEW 1: KEEP
//	NEW 2: DUPLICATE of #18
//
// Verdicts are matched by ordinal, not by line position.
//
// # Failure policy
//
// The filter fails open. A missing, unparseable or contradictory verdict keeps
// the candidate, a DUPLICATE naming an iid outside the snapshot keeps the
// candidate, and an oracle failure keeps every candidate. A duplicate on the
// board is cheaper than a lost idea.
package deduplication
