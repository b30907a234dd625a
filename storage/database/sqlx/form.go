package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/luna-app/luna/core/form"
)

const (
	formColumns  = `id, title, description, is_active, created_by, created_at, updated_at`
	fieldColumns = `id, form_id, type, label, description, required, options, "order"`
)

type formRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	IsActive    bool        `db:"is_active"`
	CreatedBy   string      `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row formRow) form(fields []form.Field) form.Form {
	return form.Form{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description.String,
		IsActive:    row.IsActive,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		Fields:      fields,
	}
}

type fieldRow struct {
	ID          string         `db:"id"`
	FormID      string         `db:"form_id"`
	Type        string         `db:"type"`
	Label       string         `db:"label"`
	Description null.String    `db:"description"`
	Required    bool           `db:"required"`
	Options     pq.StringArray `db:"options"`
	Order       int            `db:"order"`
}

func (row fieldRow) field() form.Field {
	fld := form.Field{
		ID:          row.ID,
		FormID:      row.FormID,
		Type:        form.FieldType(row.Type),
		Label:       row.Label,
		Description: row.Description.String,
		Required:    row.Required,
		Order:       row.Order,
	}
	if len(row.Options) > 0 {
		fld.Options = row.Options
	}
	return fld
}

type formRepository struct {
	db *sqlx.DB
}

var _ form.Repository = (*formRepository)(nil) // interface compliance check

func NewFormRepository(db *sqlx.DB) form.Repository {
	return &formRepository{db: db}
}

func (repo *formRepository) CreateForm(ctx context.Context, frm form.Form) (form.Form, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO forms (` + formColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(
			ctx, q,
			frm.ID, frm.Title, null.NewString(frm.Description, frm.Description != ""),
			frm.IsActive, frm.CreatedBy, frm.CreatedAt, frm.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "inserting form")
		}
		return insertFields(ctx, tx, frm.Fields)
	})
	if err != nil {
		return form.Form{}, err
	}
	return frm, nil
}

func (repo *formRepository) QueryForms(ctx context.Context, filter form.QueryFilter) ([]form.Form, error) {
	q := `SELECT ` + formColumns + ` FROM forms`
	if filter.ActiveOnly {
		q += ` WHERE is_active`
	}
	q += orderBy(filter.Ordering, "created_at DESC")

	var rows []formRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting forms")
	}
	if len(rows) == 0 {
		return []form.Form{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	fields, err := selectFields(ctx, repo.db, ids...)
	if err != nil {
		return nil, err
	}

	forms := make([]form.Form, len(rows))
	for i, row := range rows {
		forms[i] = row.form(fields[row.ID])
	}
	return forms, nil
}

func (repo *formRepository) GetForm(ctx context.Context, id string) (form.Form, error) {
	if !validID(id) {
		return form.Form{}, form.ErrNotFound
	}
	var row formRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return form.Form{}, form.ErrNotFound
		}
		return form.Form{}, errors.Wrap(err, "selecting form")
	}
	fields, err := selectFields(ctx, repo.db, id)
	if err != nil {
		return form.Form{}, err
	}
	return row.form(fields[id]), nil
}

func (repo *formRepository) ReplaceForm(ctx context.Context, frm form.Form) (form.Form, error) {
	if !validID(frm.ID) {
		return form.Form{}, form.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE forms SET title = $2, description = $3, is_active = $4, updated_at = $5 WHERE id = $1`
		res, err := tx.ExecContext(
			ctx, q,
			frm.ID, frm.Title, null.NewString(frm.Description, frm.Description != ""), frm.IsActive, frm.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "updating form")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return form.ErrNotFound
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM form_fields WHERE form_id = $1`, frm.ID); err != nil {
			return errors.Wrap(err, "deleting form fields")
		}
		return insertFields(ctx, tx, frm.Fields)
	})
	if err != nil {
		return form.Form{}, err
	}
	return frm, nil
}

func (repo *formRepository) DeleteForm(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	// fields and responses go through ON DELETE CASCADE
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return nil
}

func insertFields(ctx context.Context, tx *sqlx.Tx, fields []form.Field) error {
	q := `INSERT INTO form_fields (` + fieldColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return errors.Wrap(err, "preparing field insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, fld := range fields {
		if _, err = stmt.ExecContext(
			ctx,
			fld.ID, fld.FormID, string(fld.Type), fld.Label,
			null.NewString(fld.Description, fld.Description != ""),
			fld.Required, stringArray(fld.Options), fld.Order,
		); err != nil {
			return errors.Wrapf(err, "inserting field %q", fld.Label)
		}
	}
	return nil
}

// selectFields returns the fields of the given forms, keyed by form id and sorted by order.
func selectFields(ctx context.Context, db sqlx.QueryerContext, formIDs ...string) (map[string][]form.Field, error) {
	q := `SELECT ` + fieldColumns + ` FROM form_fields WHERE form_id::text = ANY($1) ORDER BY form_id, "order"`
	var rows []fieldRow
	if err := sqlx.SelectContext(ctx, db, &rows, q, stringArray(formIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting form fields")
	}
	fields := make(map[string][]form.Field, len(formIDs))
	for _, row := range rows {
		fields[row.FormID] = append(fields[row.FormID], row.field())
	}
	return fields, nil
}
