package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vasilvv/decor/internal/graph"
)

// Get returns the most recent artifact for a source function compiled under
// the given label tuple. ok is false when the cache has no entry.
func (s *Store) Get(ctx context.Context, sourceID string, labels []graph.Label) (Artifact, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, source_id, func_name, labels, lowered, run_id
		FROM artifacts
		WHERE source_id = ? AND labels = ?
		ORDER BY seq DESC, id COLLATE BINARY ASC
		LIMIT 1
	`, sourceID, encodeLabels(labels))

	art, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}
	return art, true, nil
}

// List returns every stored artifact in deterministic order:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for an empty store.
func (s *Store) List(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, source_id, func_name, labels, lowered, run_id
		FROM artifacts
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	arts := []Artifact{}
	for rows.Next() {
		art, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		arts = append(arts, art)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return arts, nil
}

// Stats summarizes the store's contents.
type Stats struct {
	Artifacts int
	Runs      int
}

// ReadStats counts stored artifacts and recorded runs.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&st.Artifacts); err != nil {
		return st, fmt.Errorf("count artifacts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return st, fmt.Errorf("count runs: %w", err)
	}
	return st, nil
}

// scanner abstracts sql.Row and sql.Rows for scanArtifact.
type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (Artifact, error) {
	var art Artifact
	var labels string
	if err := row.Scan(&art.Seq, &art.ID, &art.SourceID, &art.FuncName, &labels, &art.Lowered, &art.RunID); err != nil {
		return Artifact{}, err
	}
	decoded, err := decodeLabels(labels)
	if err != nil {
		return Artifact{}, err
	}
	art.Labels = decoded
	return art, nil
}
