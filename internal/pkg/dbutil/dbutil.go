package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry-built query into postgres syntax: "LIMIT ?,?"
// becomes "LIMIT ? OFFSET ?" and placeholders are rebound to $n.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// Chunk splits ids into groups of at most size, for IN clauses.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
