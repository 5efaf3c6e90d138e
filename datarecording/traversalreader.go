package datarecording

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// KindTotal is the time spent in one kind of step over all recorded
// traversals.
type KindTotal struct {
	Kind       string
	Count      int64
	TotalNS    int64
	MaxNS      int64
	AverageNS  int64
	Unfinished int64
}

// TraversalReader reads the tables written by a TraversalRecorder.
type TraversalReader struct {
	DataReader

	db *sql.DB
}

// OpenTraversalReader opens a database written by a TraversalRecorder.
func OpenTraversalReader(dbFilename string) (*TraversalReader, error) {
	db, err := openExisting(dbFilename)
	if err != nil {
		return nil, err
	}

	return NewTraversalReaderWithDB(db), nil
}

// NewTraversalReaderWithDB creates a TraversalReader with a given database.
func NewTraversalReaderWithDB(db *sql.DB) *TraversalReader {
	r := &TraversalReader{
		DataReader: NewReaderWithDB(db),
		db:         db,
	}

	r.MapTable(TraversalTable, TraversalEntry{})
	r.MapTable(SpanTable, SpanEntry{})

	return r
}

// Traversals returns the recorded traversals matching params.
func (r *TraversalReader) Traversals(
	ctx context.Context,
	params QueryParams,
) ([]TraversalEntry, int, error) {
	results, total, err := r.Query(ctx, TraversalTable, params)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]TraversalEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, *res.(*TraversalEntry))
	}

	return entries, total, nil
}

// Spans returns the spans of a traversal, in pre-order.
func (r *TraversalReader) Spans(
	ctx context.Context,
	traversalID int64,
) ([]SpanEntry, error) {
	results, _, err := r.Query(ctx, SpanTable, QueryParams{
		Where:   "TraversalID = ?",
		Args:    []any{traversalID},
		OrderBy: "SpanIndex",
	})
	if err != nil {
		return nil, err
	}

	entries := make([]SpanEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, *res.(*SpanEntry))
	}

	return entries, nil
}

// KindTotals returns the time spent per step kind, excluding the traversal
// roots, ordered by total time.
func (r *TraversalReader) KindTotals(ctx context.Context) ([]KindTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT Kind, COUNT(*), SUM(DurationNS), MAX(DurationNS),
			SUM(Unterminated OR Mismatched)
		FROM `+SpanTable+`
		WHERE Depth > 0
		GROUP BY Kind
		ORDER BY SUM(DurationNS) DESC, Kind`)
	if err != nil {
		return nil, errors.Wrap(err, "querying step totals")
	}
	defer rows.Close()

	var totals []KindTotal

	for rows.Next() {
		var k KindTotal

		err := rows.Scan(&k.Kind, &k.Count, &k.TotalNS, &k.MaxNS, &k.Unfinished)
		if err != nil {
			return nil, errors.Wrap(err, "scanning step totals")
		}

		if k.Count > 0 {
			k.AverageNS = k.TotalNS / k.Count
		}

		totals = append(totals, k)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading step totals")
	}

	return totals, nil
}
