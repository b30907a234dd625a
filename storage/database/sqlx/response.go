package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
)

const (
	responseColumns      = `id, form_id, user_id, status, created_at, updated_at`
	fieldResponseColumns = `id, response_id, field_id, value, created_at`

	submittedConstraint = "responses_submitted_key"
)

type responseRow struct {
	ID        string    `db:"id"`
	FormID    string    `db:"form_id"`
	UserID    string    `db:"user_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row responseRow) response(fields []response.FieldResponse) response.Response {
	if fields == nil {
		fields = []response.FieldResponse{}
	}
	return response.Response{
		ID:        row.ID,
		FormID:    row.FormID,
		UserID:    row.UserID,
		Status:    response.Status(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		Fields:    fields,
	}
}

type fieldResponseRow struct {
	ID         string    `db:"id"`
	ResponseID string    `db:"response_id"`
	FieldID    string    `db:"field_id"`
	Value      string    `db:"value"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row fieldResponseRow) fieldResponse() response.FieldResponse {
	return response.FieldResponse{
		ID:         row.ID,
		ResponseID: row.ResponseID,
		FieldID:    row.FieldID,
		Value:      row.Value,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

type responseRepository struct {
	db *sqlx.DB
}

var _ response.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *sqlx.DB) response.Repository {
	return &responseRepository{db: db}
}

func (repo *responseRepository) CreateResponse(ctx context.Context, resp response.Response) (response.Response, error) {
	if !validID(resp.FormID) {
		return response.Response{}, form.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO responses (` + responseColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(
			ctx, q,
			resp.ID, resp.FormID, resp.UserID, string(resp.Status), resp.CreatedAt, resp.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "inserting response")
		}
		return insertFieldResponses(ctx, tx, resp.Fields)
	})
	switch {
	case err == nil:
		return resp, nil
	case isViolation(err, uniqueViolation, submittedConstraint):
		return response.Response{}, response.ErrAlreadySubmitted
	case isViolation(err, foreignKeyViolation, "responses_form_id_fkey"):
		return response.Response{}, form.ErrNotFound
	}
	return response.Response{}, err
}

func (repo *responseRepository) QueryResponses(ctx context.Context, filter response.QueryFilter) ([]response.Response, error) {
	if !validID(filter.FormID) || (filter.UserID != "" && !validID(filter.UserID)) {
		return []response.Response{}, nil
	}
	q := `SELECT ` + responseColumns + ` FROM responses WHERE form_id = $1`
	args := []interface{}{filter.FormID}
	if filter.UserID != "" {
		q += ` AND user_id = $2`
		args = append(args, filter.UserID)
	}
	q += ` ORDER BY created_at DESC`

	var rows []responseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting responses")
	}
	if len(rows) == 0 {
		return []response.Response{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	fields, err := selectFieldResponses(ctx, repo.db, ids...)
	if err != nil {
		return nil, err
	}

	resps := make([]response.Response, len(rows))
	for i, row := range rows {
		resps[i] = row.response(fields[row.ID])
	}
	return resps, nil
}

func (repo *responseRepository) GetResponse(ctx context.Context, filter response.GetFilter) (response.Response, error) {
	if !validID(filter.ID) || (filter.UserID != "" && !validID(filter.UserID)) {
		return response.Response{}, response.ErrNotFound
	}
	// ownership and existence are checked by the same query
	q := `SELECT ` + responseColumns + ` FROM responses WHERE id = $1 AND ($2 = '' OR user_id::text = $2)`

	var row responseRow
	if err := repo.db.GetContext(ctx, &row, q, filter.ID, filter.UserID); err != nil {
		if err == sql.ErrNoRows {
			return response.Response{}, response.ErrNotFound
		}
		return response.Response{}, errors.Wrap(err, "selecting response")
	}
	fields, err := selectFieldResponses(ctx, repo.db, row.ID)
	if err != nil {
		return response.Response{}, err
	}
	return row.response(fields[row.ID]), nil
}

func (repo *responseRepository) HasSubmitted(ctx context.Context, formID, userID string) (bool, error) {
	if !validID(formID) || !validID(userID) {
		return false, nil
	}
	q := `SELECT EXISTS (SELECT 1 FROM responses WHERE form_id = $1 AND user_id = $2 AND status = $3)`
	var found bool
	if err := repo.db.GetContext(ctx, &found, q, formID, userID, string(response.StatusSubmitted)); err != nil {
		return false, errors.Wrap(err, "checking submitted responses")
	}
	return found, nil
}

func (repo *responseRepository) ReplaceResponse(ctx context.Context, resp response.Response) (response.Response, error) {
	if !validID(resp.ID) {
		return response.Response{}, response.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE responses SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + responseColumns
		var row responseRow
		if err := tx.GetContext(ctx, &row, q, resp.ID, string(resp.Status), resp.UpdatedAt); err != nil {
			if err == sql.ErrNoRows {
				return response.ErrNotFound
			}
			return errors.Wrap(err, "updating response")
		}
		resp.FormID = row.FormID
		resp.UserID = row.UserID
		resp.CreatedAt = row.CreatedAt.UTC()

		if _, err := tx.ExecContext(ctx, `DELETE FROM field_responses WHERE response_id = $1`, resp.ID); err != nil {
			return errors.Wrap(err, "deleting field responses")
		}
		return insertFieldResponses(ctx, tx, resp.Fields)
	})
	switch {
	case err == nil:
		return resp, nil
	case isViolation(err, uniqueViolation, submittedConstraint):
		return response.Response{}, response.ErrAlreadySubmitted
	}
	return response.Response{}, err
}

func (repo *responseRepository) DeleteResponse(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM responses WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting response")
	}
	return nil
}

func insertFieldResponses(ctx context.Context, tx *sqlx.Tx, fields []response.FieldResponse) error {
	if len(fields) == 0 {
		return nil
	}
	q := `INSERT INTO field_responses (` + fieldResponseColumns + `, position) VALUES ($1, $2, $3, $4, $5, $6)`
	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return errors.Wrap(err, "preparing field response insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, fr := range fields {
		if _, err = stmt.ExecContext(ctx, fr.ID, fr.ResponseID, fr.FieldID, fr.Value, fr.CreatedAt, i); err != nil {
			return errors.Wrap(err, "inserting field response")
		}
	}
	return nil
}

// selectFieldResponses returns the field responses of the given responses, keyed by response id
// and kept in creation order.
func selectFieldResponses(ctx context.Context, db sqlx.QueryerContext, responseIDs ...string) (map[string][]response.FieldResponse, error) {
	q := `SELECT ` + fieldResponseColumns + ` FROM field_responses
		WHERE response_id::text = ANY($1) ORDER BY response_id, position`
	var rows []fieldResponseRow
	if err := sqlx.SelectContext(ctx, db, &rows, q, stringArray(responseIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting field responses")
	}
	fields := make(map[string][]response.FieldResponse, len(responseIDs))
	for _, row := range rows {
		fields[row.ResponseID] = append(fields[row.ResponseID], row.fieldResponse())
	}
	return fields, nil
}
