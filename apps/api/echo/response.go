package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/luna-app/luna/core/response"
)

type responseApi struct {
	svc *response.Service
}

func registerResponseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := responseApi{svc: deps.ResponseSvc}

	fg := g.Group("/forms", jwt)
	fg.GET("/:formId/responses", api.query)
	fg.POST("/:formId/responses", api.create)

	// ownership is checked by the service: responses of other users are not found
	rg := fg.Group("/responses")
	rg.GET("/:responseId", api.retrieve)
	rg.PUT("/:responseId", api.update)
	rg.DELETE("/:responseId", api.destroy)
}

// Handlers

func (api *responseApi) query(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	resps, err := api.svc.List(ctx.Request().Context(), actor, ctx.Param("formId"))
	if err != nil {
		return errors.Wrap(err, "listing responses")
	}
	if resps == nil {
		resps = []response.Response{}
	}
	return ctx.JSON(http.StatusOK, resps)
}

func (api *responseApi) create(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	var data response.NewResponse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResponse")
	}

	resp, err := api.svc.Create(ctx.Request().Context(), actor, ctx.Param("formId"), data)
	if err != nil {
		return errors.Wrap(err, "creating response")
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *responseApi) retrieve(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	resp, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("responseId"))
	if err != nil {
		return errors.Wrap(err, "getting response")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *responseApi) update(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	var data response.UpdateResponse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResponse")
	}

	resp, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("responseId"), data)
	if err != nil {
		return errors.Wrap(err, "updating response")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *responseApi) destroy(ctx echo.Context) error {
	actor, err := getActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("responseId")); err != nil {
		return errors.Wrap(err, "deleting response")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}
