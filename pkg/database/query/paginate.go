package query

import (
	"strconv"
)

// PaginateQuery appends cursor, ordering and limit clauses to a query over a
// table keyed by an id column, returning the query and its extended args.
//
// The input must end in a parenthesized WHERE clause:
//
//	SELECT ... WHERE (...)
//
// and becomes:
//
//	SELECT ... WHERE (...) AND id > $n ORDER BY id ASC LIMIT $n+1
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	if len(cursor) > 0 {
		comparison := " > "
		if direction == Descending {
			comparison = " < "
		}

		args = append(args, cursor.ToUint64())
		query += " AND id" + comparison + "$" + strconv.Itoa(len(args))
	}

	query += " ORDER BY id " + direction.String()

	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return query, args
}
