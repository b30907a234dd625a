package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
)

type formRepository struct {
	db *DB
}

var _ form.Repository = (*formRepository)(nil) // interface compliance check

func NewFormRepository(db *DB) form.Repository {
	return &formRepository{db: db}
}

func (repo *formRepository) CreateForm(_ context.Context, frm form.Form) (form.Form, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.forms[frm.ID] = copyForm(frm)
	return copyForm(frm), nil
}

func (repo *formRepository) QueryForms(_ context.Context, filter form.QueryFilter) ([]form.Form, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	forms := make([]form.Form, 0, len(repo.db.forms))
	for _, frm := range repo.db.forms {
		if filter.ActiveOnly && !frm.IsActive {
			continue
		}
		forms = append(forms, copyForm(frm))
	}
	sortForms(forms, filter.Ordering)
	return forms, nil
}

// sortForms sorts by the given orderings, newest first when there are none.
func sortForms(forms []form.Form, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(forms, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareForms(forms[i], forms[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func compareForms(a, b form.Form, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "is_active":
		return compareBools(a.IsActive, b.IsActive)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

func (repo *formRepository) GetForm(_ context.Context, id string) (form.Form, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if frm, ok := repo.db.forms[id]; ok {
		return copyForm(frm), nil
	}
	return form.Form{}, form.ErrNotFound
}

func (repo *formRepository) ReplaceForm(_ context.Context, frm form.Form) (form.Form, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.forms[frm.ID]; !ok {
		return form.Form{}, form.ErrNotFound
	}
	repo.db.forms[frm.ID] = copyForm(frm)
	return copyForm(frm), nil
}

func (repo *formRepository) DeleteForm(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.deleteForm(id)
	return nil
}

// deleteForm removes a form and its responses. The caller holds the lock.
func (db *DB) deleteForm(id string) {
	delete(db.forms, id)
	for rid, resp := range db.responses {
		if resp.FormID == id {
			delete(db.responses, rid)
		}
	}
}
