package repositories

import (
	"database/sql"
	"fmt"
)

// sequenceTables lists the tables that carry a "<table>_sequence" counter.
var sequenceTables = map[string]bool{
	"runs": true,
}

// rowQuerier is satisfied by both [sql.DB] and [sql.Tx].
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments and returns the sequence counter for table.
//
// Pass the [sql.Tx] of the insert that consumes the number so a failed insert does not skip one.
// Sequence numbers are what the history command shows (run #42) in place of the UUID.
func NextSequence(q rowQuerier, table string) (int, error) {
	if !sequenceTables[table] {
		return 0, fmt.Errorf("no sequence for table %q", table)
	}

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
