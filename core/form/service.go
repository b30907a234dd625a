package form

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/user"
)

var ErrNotFound = core.NewNotFoundError("form")

// SortFields are the orderings forms can be listed by.
var SortFields = []string{"title", "is_active", "created_at", "updated_at"}

type (
	Repository interface {
		// CreateForm persists frm and its fields in one unit.
		CreateForm(ctx context.Context, frm Form) (Form, error)
		// QueryForms returns forms with their fields in the filter's order.
		QueryForms(ctx context.Context, filter QueryFilter) ([]Form, error)
		GetForm(ctx context.Context, id string) (Form, error)
		// ReplaceForm updates frm and swaps its whole field collection in one transaction.
		ReplaceForm(ctx context.Context, frm Form) (Form, error)
		// DeleteForm removes the form with its fields and responses. Missing forms are not an error.
		DeleteForm(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// List returns every form to admins and only the active ones to everybody else.
func (svc *Service) List(ctx context.Context, actor user.Actor, ordering []core.DBOrdering) ([]Form, error) {
	return svc.repo.QueryForms(ctx, QueryFilter{
		ActiveOnly: !actor.IsAdmin(),
		Ordering:   core.FilterOrderings(ordering, SortFields...),
	})
}

// Get hides inactive forms from non-admins behind ErrNotFound.
func (svc *Service) Get(ctx context.Context, actor user.Actor, id string) (Form, error) {
	frm, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Form{}, err
	}
	if !frm.IsActive && !actor.IsAdmin() {
		return Form{}, ErrNotFound
	}
	return frm, nil
}

func (svc *Service) Create(ctx context.Context, actor user.Actor, nf NewForm) (Form, error) {
	if !actor.IsAdmin() {
		return Form{}, core.ErrForbidden
	}
	if err := nf.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	now := time.Now().UTC()
	frm := Form{
		ID:          uuid.NewString(),
		Title:       nf.Title,
		Description: nf.Description,
		IsActive:    true,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nf.IsActive != nil {
		frm.IsActive = *nf.IsActive
	}
	frm.Fields = makeFields(frm.ID, nf.Fields)

	frm, err := svc.repo.CreateForm(ctx, frm)
	if err != nil {
		return Form{}, errors.Wrap(err, "creating form")
	}
	return frm, nil
}

// Update replaces the form attributes and its entire field collection.
// Field ids are regenerated, so responses keep pointing at the old ones.
func (svc *Service) Update(ctx context.Context, actor user.Actor, id string, uf UpdateForm) (Form, error) {
	if !actor.IsAdmin() {
		return Form{}, core.ErrForbidden
	}
	frm, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Form{}, err
	}
	if err = uf.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	frm.Title = uf.Title
	frm.Description = uf.Description
	if uf.IsActive != nil {
		frm.IsActive = *uf.IsActive
	}
	frm.Fields = makeFields(frm.ID, uf.Fields)
	frm.UpdatedAt = time.Now().UTC()

	if frm, err = svc.repo.ReplaceForm(ctx, frm); err != nil {
		return Form{}, errors.Wrap(err, "replacing form")
	}
	return frm, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.Actor, id string) error {
	if !actor.IsAdmin() {
		return core.ErrForbidden
	}
	if err := svc.repo.DeleteForm(ctx, id); err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return nil
}

// makeFields builds the field collection of a form; order is the input index.
func makeFields(formID string, nfs []NewField) []Field {
	flds := make([]Field, len(nfs))
	for i, nf := range nfs {
		flds[i] = Field{
			ID:          uuid.NewString(),
			FormID:      formID,
			Type:        nf.Type,
			Label:       nf.Label,
			Description: nf.Description,
			Required:    nf.Required,
			Options:     nf.Options,
			Order:       i,
		}
	}
	return flds
}
