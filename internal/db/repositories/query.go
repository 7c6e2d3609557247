// Package repositories implements the data access layer for the PropertyDesk
// API. Each repository type owns the queries for one table; services never
// issue SQL directly.
package repositories

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/propertydesk/propertydesk/internal/access"
)

// ErrNotFound is returned by mutations that matched no row.
var ErrNotFound = errors.New("record not found")

// validID reports whether id can address a UUID primary key. Lookups with
// anything else are answered as not found without reaching Postgres.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// conditions accumulates WHERE clauses written with ? placeholders. Queries
// are passed through sqlx Rebind before execution.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// addScope restricts rows to those visible under scope. counterpartyCol may
// be empty when the table has no counterparty reference.
func (c *conditions) addScope(scope access.Scope, counterpartyCol string, actorCols ...string) {
	if scope.All {
		return
	}
	var ors []string
	var args []interface{}
	if scope.CounterpartyID != "" && counterpartyCol != "" {
		ors = append(ors, counterpartyCol+" = ?")
		args = append(args, scope.CounterpartyID)
	}
	if scope.RecordActorID != "" {
		for _, col := range actorCols {
			ors = append(ors, col+" = ?")
			args = append(args, scope.RecordActorID)
		}
	}
	if len(ors) == 0 {
		c.add("FALSE")
		return
	}
	c.add("("+strings.Join(ors, " OR ")+")", args...)
}

// page clamps limit and offset to sane values.
func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
