package postgres

import (
	"fmt"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// listQuery accumulates a filtered, paginated SELECT with positional args.
type listQuery struct {
	sql  string
	args []any
}

func newListQuery(base string, args ...any) *listQuery {
	return &listQuery{sql: base, args: args}
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// window applies ListOpts on the given timestamp column.
func (q *listQuery) window(col string, opts domain.ListOpts) *listQuery {
	if opts.Since != nil {
		q.sql += " AND " + col + " >= " + q.arg(*opts.Since)
	}
	if opts.Until != nil {
		q.sql += " AND " + col + " <= " + q.arg(*opts.Until)
	}
	q.sql += " ORDER BY " + col + " DESC"
	if opts.Limit > 0 {
		q.sql += " LIMIT " + q.arg(opts.Limit)
	}
	if opts.Offset > 0 {
		q.sql += " OFFSET " + q.arg(opts.Offset)
	}
	return q
}
