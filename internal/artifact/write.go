package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/vasilvv/decor/internal/graph"
)

// Artifact is one persisted compilation output: the lowered form of one
// source function under one label tuple.
type Artifact struct {
	// ID is the content-addressed artifact hash (graph.ArtifactID).
	ID string

	// SourceID is the content hash of the source function (graph.FuncID).
	SourceID string

	FuncName string
	Labels   []graph.Label

	// Lowered is the canonical JSON encoding of the lowered graph.
	Lowered []byte

	// RunID names the compile run that produced the artifact.
	RunID string

	// Seq is the store-assigned write order. Zero until persisted.
	Seq int64
}

// New builds the artifact for a compiled function: hashes the source,
// canonically encodes the lowered graph, and derives the artifact ID.
func New(source, lowered *graph.Func, labels []graph.Label, runID string) (Artifact, error) {
	sourceID, err := graph.FuncID(source)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact for %s: %w", source.Name, err)
	}
	encoded, err := graph.MarshalCanonical(lowered.CanonicalMap())
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact for %s: %w", source.Name, err)
	}
	id, err := graph.ArtifactID(sourceID, lowered)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact for %s: %w", source.Name, err)
	}
	return Artifact{
		ID:       id,
		SourceID: sourceID,
		FuncName: source.Name,
		Labels:   append([]graph.Label(nil), labels...),
		Lowered:  encoded,
		RunID:    runID,
	}, nil
}

// RecordRun registers a compile run before its artifacts are written.
// Idempotent: re-registering an existing run ID is a no-op.
func (s *Store) RecordRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, compiler_version, ir_version)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, graph.CompilerVersion, graph.IRVersion)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Put inserts an artifact. Uses ON CONFLICT(id) DO NOTHING for idempotency:
// the ID is a content hash, so a conflicting row is byte-identical and the
// write is silently skipped. Returns whether a new row was inserted.
//
// The run referenced by RunID must have been recorded first (foreign key
// constraint).
func (s *Store) Put(ctx context.Context, art Artifact) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, source_id, func_name, labels, lowered, run_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		art.ID,
		art.SourceID,
		art.FuncName,
		encodeLabels(art.Labels),
		art.Lowered,
		art.RunID,
	)
	if err != nil {
		return false, fmt.Errorf("put artifact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put artifact: rows affected: %w", err)
	}
	return rows > 0, nil
}

// Clear removes every artifact and run record.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Artifacts first; they reference runs.
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear: commit: %w", err)
	}
	return nil
}

// encodeLabels renders a label tuple as the stored key string, e.g.
// "private,public". The empty tuple encodes as "".
func encodeLabels(labels []graph.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.String()
	}
	return strings.Join(parts, ",")
}

// decodeLabels parses the stored key string back into a label tuple.
func decodeLabels(s string) ([]graph.Label, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	labels := make([]graph.Label, len(parts))
	for i, p := range parts {
		switch p {
		case "public":
			labels[i] = graph.Public
		case "private":
			labels[i] = graph.Private
		default:
			return nil, fmt.Errorf("decode labels: unknown label %q", p)
		}
	}
	return labels, nil
}
