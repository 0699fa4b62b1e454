package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// Ensure Adapter implements the datamapper adapter interfaces
var (
	_ datamapper.Adapter          = (*Adapter)(nil)
	_ datamapper.Transactional    = (*Adapter)(nil)
	_ datamapper.StorageInspector = (*Adapter)(nil)
)

// Adapter implements datamapper.Adapter using GORM
type Adapter struct {
	db *gorm.DB
}

// New creates a new Adapter
func New(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

// DB returns the underlying connection.
func (a *Adapter) DB() *gorm.DB { return a.db }

func (a *Adapter) Read(ctx context.Context, q *datamapper.Query) ([][]any, error) {
	sql, args, err := a.selectStatement(q)
	if err != nil {
		return nil, err
	}
	rows, err := a.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := q.Fields()
	var result [][]any
	for rows.Next() {
		values := make([]any, len(fields))
		dest := make([]any, len(fields))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, f := range fields {
			values[i] = normalize(f, values[i])
		}
		result = append(result, values)
	}
	return result, rows.Err()
}

// normalize turns driver text returned as bytes into strings for properties
// that aren't binary.
func normalize(p *property.Property, value any) any {
	b, ok := value.([]byte)
	if !ok || p.Primitive() == property.PrimitiveBinary {
		return value
	}
	return string(b)
}

func (a *Adapter) Create(ctx context.Context, resources []*datamapper.Resource) (int, error) {
	db := a.db.WithContext(ctx)
	created := 0
	for _, r := range resources {
		sql, args, returning, err := a.insertStatement(r)
		if err != nil {
			return created, err
		}
		if len(returning) == 0 {
			res := db.Exec(sql, args...)
			if res.Error != nil {
				return created, res.Error
			}
			created += int(res.RowsAffected)
			continue
		}

		rows, err := db.Raw(sql, args...).Rows()
		if err != nil {
			return created, err
		}
		generated := make([]any, len(returning))
		dest := make([]any, len(returning))
		for i := range generated {
			dest[i] = &generated[i]
		}
		if rows.Next() {
			err = rows.Scan(dest...)
			created++
		} else {
			err = rows.Err()
		}
		rows.Close()
		if err != nil {
			return created, err
		}
		for i, k := range returning {
			k.SetValue(r, generated[i])
		}
	}
	return created, nil
}

func (a *Adapter) Update(ctx context.Context, attributes []datamapper.Attribute, q *datamapper.Query) (int, error) {
	if len(attributes) == 0 {
		return 0, nil
	}
	sql, args, err := a.updateStatement(attributes, q)
	if err != nil {
		return 0, err
	}
	res := a.db.WithContext(ctx).Exec(sql, args...)
	return int(res.RowsAffected), res.Error
}

func (a *Adapter) Delete(ctx context.Context, q *datamapper.Query) (int, error) {
	sql, args, err := a.deleteStatement(q)
	if err != nil {
		return 0, err
	}
	res := a.db.WithContext(ctx).Exec(sql, args...)
	return int(res.RowsAffected), res.Error
}

// Transaction runs fn with an adapter bound to a database transaction.
// Nested calls create savepoints.
func (a *Adapter) Transaction(ctx context.Context, fn func(ctx context.Context, tx datamapper.Adapter) error) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Adapter{db: tx})
	})
}

// StorageExists reports whether a table called storageName exists.
func (a *Adapter) StorageExists(ctx context.Context, storageName string) (bool, error) {
	if storageName == "" {
		return false, fmt.Errorf("%w: empty storage name", datamapper.ErrInvalidArgument)
	}
	return a.db.WithContext(ctx).Migrator().HasTable(storageName), nil
}
