package gorm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

var comparisons = map[datamapper.Operator]string{
	datamapper.OpEq:   "=",
	datamapper.OpNot:  "<>",
	datamapper.OpGt:   ">",
	datamapper.OpGte:  ">=",
	datamapper.OpLt:   "<",
	datamapper.OpLte:  "<=",
	datamapper.OpLike: "LIKE",
}

func (a *Adapter) quote(name string) string {
	return a.db.Statement.Quote(name)
}

func (a *Adapter) selectStatement(q *datamapper.Query) (string, []any, error) {
	fields := q.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = a.quote(f.Field())
	}
	query := "SELECT " + strings.Join(columns, ", ") + " FROM " + a.quote(q.StorageName())

	where, args, err := a.whereClause(q.Conditions())
	if err != nil {
		return "", nil, err
	}
	query += where

	if order := q.Order(); len(order) > 0 {
		terms := make([]string, len(order))
		for i, d := range order {
			terms[i] = a.quote(d.Property.Field())
			if d.Descending {
				terms[i] += " DESC"
			}
		}
		query += " ORDER BY " + strings.Join(terms, ", ")
	}
	if q.Limit() > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit())
	}
	if q.Offset() > 0 {
		query += " OFFSET ?"
		args = append(args, q.Offset())
	}
	return query, args, nil
}

// insertStatement builds the insert for r's dirty attributes. Serial key
// properties without a value are returned so the caller can read them back.
func (a *Adapter) insertStatement(r *datamapper.Resource) (string, []any, []*property.Property, error) {
	values, _, err := datamapper.Row(r)
	if err != nil {
		return "", nil, nil, err
	}
	var returning []*property.Property
	for _, k := range r.Model().Key(r.Repository().Name()) {
		if v, ok := values[k.Field()]; k.IsSerial() && (!ok || v == nil) {
			delete(values, k.Field())
			returning = append(returning, k)
		}
	}

	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	query := "INSERT INTO " + a.quote(r.Model().StorageName(r.Repository().Name()))
	args := make([]any, 0, len(fields))
	if len(fields) == 0 {
		query += " DEFAULT VALUES"
	} else {
		columns := make([]string, len(fields))
		placeholders := make([]string, len(fields))
		for i, field := range fields {
			columns[i] = a.quote(field)
			placeholders[i] = "?"
			args = append(args, values[field])
		}
		query += " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	}
	if len(returning) > 0 {
		columns := make([]string, len(returning))
		for i, k := range returning {
			columns[i] = a.quote(k.Field())
		}
		query += " RETURNING " + strings.Join(columns, ", ")
	}
	return query, args, returning, nil
}

func (a *Adapter) updateStatement(attributes []datamapper.Attribute, q *datamapper.Query) (string, []any, error) {
	assignments := make([]string, len(attributes))
	args := make([]any, 0, len(attributes))
	for i, attr := range attributes {
		v, err := attr.Property.Dump(attr.Value)
		if err != nil {
			return "", nil, err
		}
		assignments[i] = a.quote(attr.Property.Field()) + " = ?"
		args = append(args, v)
	}
	where, whereArgs, err := a.whereClause(q.Conditions())
	if err != nil {
		return "", nil, err
	}
	query := "UPDATE " + a.quote(q.StorageName()) + " SET " + strings.Join(assignments, ", ") + where
	return query, append(args, whereArgs...), nil
}

func (a *Adapter) deleteStatement(q *datamapper.Query) (string, []any, error) {
	where, args, err := a.whereClause(q.Conditions())
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + a.quote(q.StorageName()) + where, args, nil
}

func (a *Adapter) whereClause(conditions []datamapper.Condition) (string, []any, error) {
	if len(conditions) == 0 {
		return "", nil, nil
	}
	terms := make([]string, 0, len(conditions))
	var args []any
	for _, c := range conditions {
		term, arg, err := a.condition(c)
		if err != nil {
			return "", nil, err
		}
		terms = append(terms, term)
		if arg != nil {
			args = append(args, arg)
		}
	}
	return " WHERE " + strings.Join(terms, " AND "), args, nil
}

// condition renders one condition. A nil argument means the term has no
// placeholder.
func (a *Adapter) condition(c datamapper.Condition) (string, any, error) {
	column := a.quote(c.Property.Field())

	if values, ok := c.Value.([]any); ok {
		dumped := make([]any, len(values))
		for i, v := range values {
			d, err := c.Property.Dump(v)
			if err != nil {
				return "", nil, err
			}
			dumped[i] = d
		}
		if c.Operator == datamapper.OpNot {
			return column + " NOT IN ?", dumped, nil
		}
		return column + " IN ?", dumped, nil
	}

	value, err := c.Property.Dump(c.Value)
	if err != nil {
		return "", nil, err
	}
	if value == nil {
		switch c.Operator {
		case datamapper.OpEq, datamapper.OpIn:
			return column + " IS NULL", nil, nil
		case datamapper.OpNot:
			return column + " IS NOT NULL", nil, nil
		}
		return "", nil, fmt.Errorf("%w: %s %s nil", datamapper.ErrInvalidArgument, c.Property.Name(), c.Operator)
	}
	op, ok := comparisons[c.Operator]
	if c.Operator == datamapper.OpIn {
		op, ok = "=", true
	}
	if !ok {
		return "", nil, fmt.Errorf("%w: operator %s", datamapper.ErrUnsupported, c.Operator)
	}
	return column + " " + op + " ?", value, nil
}
