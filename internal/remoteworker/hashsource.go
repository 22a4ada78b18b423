// ============================================================================
// Package: internal/remoteworker
// File: hashsource.go
// Function: HashSource — the content-addressed cache collaborator consulted
// by the outbound batcher to compute each pip's required file hashes before
// shipping an ExecutePips batch (spec §4.6). Out of scope per spec §1, in
// the same spirit as internal/workerside.FileContentManager on the other
// side of the wire.
// ============================================================================

package remoteworker

import "github.com/ChuLiYu/beaver-distbuild/pkg/types"

// HashSource resolves the full set of file hashes a pip needs materialized
// on the remote worker before its step can run.
type HashSource interface {
	RequiredHashes(pip types.PipID) []types.FileArtifactKeyedHash
}
