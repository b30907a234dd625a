package response

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("response")
	ErrAlreadySubmitted = core.NewConflictError("a response to this form has already been submitted")
)

type (
	Repository interface {
		// CreateResponse persists resp and its field responses in one unit.
		// A second submitted response for the same form and user fails with a ConflictError.
		CreateResponse(ctx context.Context, resp Response) (Response, error)
		QueryResponses(ctx context.Context, filter QueryFilter) ([]Response, error)
		GetResponse(ctx context.Context, filter GetFilter) (Response, error)
		HasSubmitted(ctx context.Context, formID, userID string) (bool, error)
		// ReplaceResponse updates resp and swaps its whole field response collection in one transaction.
		ReplaceResponse(ctx context.Context, resp Response) (Response, error)
		DeleteResponse(ctx context.Context, id string) error
	}

	FormGetter interface {
		GetForm(ctx context.Context, id string) (form.Form, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// SubmitHook is called after a response moved to the submitted state.
	SubmitHook func(ctx context.Context, frm form.Form, resp Response)

	Deps struct {
		Repo     Repository
		Forms    FormGetter
		Users    UserGetter
		MailSvc  core.EmailService
		Logger   core.Logger
		Conf     *core.Config
		Validate *validator.Validate
	}

	Service struct {
		Deps
		hooks []SubmitHook
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

// OnSubmit registers hook. It must be called before the service handles requests.
func (svc *Service) OnSubmit(hook SubmitHook) {
	svc.hooks = append(svc.hooks, hook)
}

// List returns every response to the form for admins, only the actor's own otherwise.
func (svc *Service) List(ctx context.Context, actor user.Actor, formID string) ([]Response, error) {
	filter := QueryFilter{FormID: formID}
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}
	return svc.Repo.QueryResponses(ctx, filter)
}

// Get returns the response with its form. Responses of other users are reported
// as not found to non-admins.
func (svc *Service) Get(ctx context.Context, actor user.Actor, id string) (Response, error) {
	resp, err := svc.get(ctx, actor, id)
	if err != nil {
		return Response{}, err
	}
	frm, err := svc.Forms.GetForm(ctx, resp.FormID)
	if err != nil {
		return Response{}, errors.Wrap(err, "getting form")
	}
	resp.Form = &frm
	return resp, nil
}

func (svc *Service) get(ctx context.Context, actor user.Actor, id string) (Response, error) {
	filter := GetFilter{ID: id}
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}
	return svc.Repo.GetResponse(ctx, filter)
}

// Create starts a response to an active form on behalf of actor.
func (svc *Service) Create(ctx context.Context, actor user.Actor, formID string, nr NewResponse) (Response, error) {
	frm, err := svc.Forms.GetForm(ctx, formID)
	if err != nil {
		return Response{}, err
	}
	if !frm.IsActive {
		return Response{}, form.ErrNotFound
	}
	if err = nr.Validate(svc.Validate); err != nil {
		return Response{}, err
	}
	if err = checkFieldValues(frm, nr.Fields); err != nil {
		return Response{}, err
	}
	if nr.Status == StatusSubmitted {
		if err = svc.checkSubmittable(ctx, frm, actor.ID, nr.Fields); err != nil {
			return Response{}, err
		}
	}

	now := time.Now().UTC()
	resp := Response{
		ID:        uuid.NewString(),
		FormID:    frm.ID,
		UserID:    actor.ID,
		Status:    nr.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	resp.Fields = makeFieldResponses(resp.ID, nr.Fields, now)

	if resp, err = svc.Repo.CreateResponse(ctx, resp); err != nil {
		return Response{}, errors.Wrap(err, "creating response")
	}
	if resp.IsSubmitted() {
		svc.submitted(ctx, frm, resp)
	}
	return resp, nil
}

// Update replaces the field values of a response and optionally moves its status.
// Non-admins cannot touch responses to inactive forms nor submitted responses.
func (svc *Service) Update(ctx context.Context, actor user.Actor, id string, ur UpdateResponse) (Response, error) {
	resp, err := svc.get(ctx, actor, id)
	if err != nil {
		return Response{}, err
	}
	frm, err := svc.Forms.GetForm(ctx, resp.FormID)
	if err != nil {
		return Response{}, errors.Wrap(err, "getting form")
	}
	if !actor.IsAdmin() && (!frm.IsActive || resp.IsSubmitted()) {
		return Response{}, core.ErrForbidden
	}
	if err = ur.Validate(svc.Validate); err != nil {
		return Response{}, err
	}
	if err = checkFieldValues(frm, ur.Fields); err != nil {
		return Response{}, err
	}

	status := ur.Status
	if status == "" {
		status = resp.Status
	}
	wasSubmitted := resp.IsSubmitted()
	if status == StatusSubmitted {
		if wasSubmitted {
			err = checkRequiredFields(frm, ur.Fields)
		} else {
			err = svc.checkSubmittable(ctx, frm, resp.UserID, ur.Fields)
		}
		if err != nil {
			return Response{}, err
		}
	}

	now := time.Now().UTC()
	resp.Status = status
	resp.UpdatedAt = now
	resp.Fields = makeFieldResponses(resp.ID, ur.Fields, now)

	if resp, err = svc.Repo.ReplaceResponse(ctx, resp); err != nil {
		return Response{}, errors.Wrap(err, "replacing response")
	}
	if resp.IsSubmitted() && !wasSubmitted {
		svc.submitted(ctx, frm, resp)
	}
	return resp, nil
}

// Delete discards a response. Non-admins can only discard drafts.
func (svc *Service) Delete(ctx context.Context, actor user.Actor, id string) error {
	resp, err := svc.get(ctx, actor, id)
	if err != nil {
		return err
	}
	if resp.IsSubmitted() && !actor.IsAdmin() {
		return core.ErrForbidden
	}
	if err = svc.Repo.DeleteResponse(ctx, resp.ID); err != nil {
		return errors.Wrap(err, "deleting response")
	}
	return nil
}

// checkSubmittable runs the required fields check and the one-submission-per-user check.
func (svc *Service) checkSubmittable(ctx context.Context, frm form.Form, userID string, values []FieldValue) error {
	if err := checkRequiredFields(frm, values); err != nil {
		return err
	}
	exists, err := svc.Repo.HasSubmitted(ctx, frm.ID, userID)
	if err != nil {
		return errors.Wrap(err, "checking submitted responses")
	}
	if exists {
		return ErrAlreadySubmitted
	}
	return nil
}

func (svc *Service) submitted(ctx context.Context, frm form.Form, resp Response) {
	for _, hook := range svc.hooks {
		hook(ctx, frm, resp)
	}
	if svc.Conf != nil && svc.Conf.NotifyOnSubmit {
		svc.notifyCreator(ctx, frm, resp)
	}
}

// notifyCreator emails the form creator about a new submission. Failures are only logged.
func (svc *Service) notifyCreator(ctx context.Context, frm form.Form, resp Response) {
	if svc.MailSvc == nil || svc.Users == nil {
		return
	}
	creator, err := svc.Users.GetByID(ctx, frm.CreatedBy)
	if err != nil {
		svc.logError("getting form creator", err)
		return
	}
	submitter, err := svc.Users.GetByID(ctx, resp.UserID)
	if err != nil {
		svc.logError("getting submitter", err)
		return
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: creator.Name, Address: creator.Email}},
		Subject:      "New response to " + frm.Title,
		TemplateName: "response_submitted",
		TemplateData: map[string]string{
			"Submitter":  submitter.Name,
			"FormTitle":  frm.Title,
			"FormID":     frm.ID,
			"ResponseID": resp.ID,
		},
	})
}

func (svc *Service) logError(msg string, err error) {
	if svc.Logger != nil {
		svc.Logger.Error(msg, err)
	}
}

func makeFieldResponses(responseID string, values []FieldValue, now time.Time) []FieldResponse {
	frs := make([]FieldResponse, len(values))
	for i, val := range values {
		frs[i] = FieldResponse{
			ID:         uuid.NewString(),
			ResponseID: responseID,
			FieldID:    strings.TrimSpace(val.FieldID),
			Value:      val.Value,
			CreatedAt:  now,
		}
	}
	return frs
}
