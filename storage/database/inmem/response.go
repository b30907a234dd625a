package inmemdb

import (
	"context"
	"sort"

	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
)

type responseRepository struct {
	db *DB
}

var _ response.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *DB) response.Repository {
	return &responseRepository{db: db}
}

func (repo *responseRepository) CreateResponse(_ context.Context, resp response.Response) (response.Response, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.forms[resp.FormID]; !ok {
		return response.Response{}, form.ErrNotFound
	}
	if resp.IsSubmitted() && repo.hasSubmitted(resp.FormID, resp.UserID, resp.ID) {
		return response.Response{}, response.ErrAlreadySubmitted
	}
	repo.db.responses[resp.ID] = copyResponse(resp)
	return copyResponse(resp), nil
}

func (repo *responseRepository) QueryResponses(_ context.Context, filter response.QueryFilter) ([]response.Response, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	resps := make([]response.Response, 0)
	for _, resp := range repo.db.responses {
		if resp.FormID != filter.FormID {
			continue
		}
		if filter.UserID != "" && resp.UserID != filter.UserID {
			continue
		}
		resps = append(resps, copyResponse(resp))
	}
	sort.SliceStable(resps, func(i, j int) bool { return resps[i].CreatedAt.After(resps[j].CreatedAt) })
	return resps, nil
}

func (repo *responseRepository) GetResponse(_ context.Context, filter response.GetFilter) (response.Response, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	resp, ok := repo.db.responses[filter.ID]
	if !ok || (filter.UserID != "" && resp.UserID != filter.UserID) {
		return response.Response{}, response.ErrNotFound
	}
	return copyResponse(resp), nil
}

func (repo *responseRepository) HasSubmitted(_ context.Context, formID, userID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.hasSubmitted(formID, userID, ""), nil
}

func (repo *responseRepository) ReplaceResponse(_ context.Context, resp response.Response) (response.Response, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.responses[resp.ID]
	if !ok {
		return response.Response{}, response.ErrNotFound
	}
	if resp.IsSubmitted() && repo.hasSubmitted(orig.FormID, orig.UserID, orig.ID) {
		return response.Response{}, response.ErrAlreadySubmitted
	}
	resp.FormID = orig.FormID
	resp.UserID = orig.UserID
	resp.CreatedAt = orig.CreatedAt
	repo.db.responses[resp.ID] = copyResponse(resp)
	return copyResponse(resp), nil
}

func (repo *responseRepository) DeleteResponse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.responses, id)
	return nil
}

// hasSubmitted reports whether userID already submitted formID, ignoring excludedID.
// The caller holds the lock.
func (repo *responseRepository) hasSubmitted(formID, userID, excludedID string) bool {
	for _, resp := range repo.db.responses {
		if resp.ID != excludedID && resp.FormID == formID && resp.UserID == userID && resp.IsSubmitted() {
			return true
		}
	}
	return false
}
