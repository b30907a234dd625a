package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/luna-app/luna/core/form"
)

type formApi struct {
	svc *form.Service
}

func registerFormAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := formApi{svc: deps.FormSvc}

	fg := g.Group("/forms", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, adminMiddleware())
	fg.GET("/:formId", api.retrieve)
	fg.PUT("/:formId", api.update, adminMiddleware())
	fg.DELETE("/:formId", api.destroy, adminMiddleware())
}

// Handlers

func (api *formApi) query(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	forms, err := api.svc.List(ctx.Request().Context(), actor, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "listing forms")
	}
	if forms == nil {
		forms = []form.Form{}
	}
	return ctx.JSON(http.StatusOK, forms)
}

func (api *formApi) create(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	var data form.NewForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewForm")
	}

	frm, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating form")
	}
	return ctx.JSON(http.StatusCreated, frm)
}

func (api *formApi) retrieve(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	frm, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("formId"))
	if err != nil {
		return errors.Wrap(err, "getting form")
	}
	return ctx.JSON(http.StatusOK, frm)
}

func (api *formApi) update(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	var data form.UpdateForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateForm")
	}

	frm, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("formId"), data)
	if err != nil {
		return errors.Wrap(err, "updating form")
	}
	return ctx.JSON(http.StatusOK, frm)
}

func (api *formApi) destroy(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("formId")); err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}
