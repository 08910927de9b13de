package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
)

type sessionApi struct {
	sessions *session.Manager
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, sessions *session.Manager, validate *validator.Validate) {
	api := sessionApi{
		sessions: sessions,
		validate: validate,
	}

	sg := g.Group("/session", jwt, studentMiddleware())
	sg.POST("", api.open)
	sg.GET("", api.retrieve)
	sg.DELETE("", api.close)
	sg.POST("/save", api.save)
	sg.POST("/next", api.next)
	sg.POST("/previous", api.previous)
}

// Handlers

func (api *sessionApi) open(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data OpenSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OpenSessionRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	state, notices, err := api.sessions.Open(ctx.Request().Context(), claims.Subject, data.LessonID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newSessionResponse(state, notices))
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	state, err := api.sessions.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(state, nil))
}

func (api *sessionApi) save(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	state, notices, err := api.sessions.Save(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(state, notices))
}

func (api *sessionApi) next(ctx echo.Context) error {
	return api.advance(ctx, true)
}

func (api *sessionApi) previous(ctx echo.Context) error {
	return api.advance(ctx, false)
}

func (api *sessionApi) advance(ctx echo.Context, forward bool) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	var (
		state   session.State
		notices []session.Notice
	)
	if forward {
		state, notices, err = api.sessions.Next(reqCtx, claims.Subject)
	} else {
		state, notices, err = api.sessions.Previous(reqCtx, claims.Subject)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(state, notices))
}

func (api *sessionApi) close(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	notices, err := api.sessions.Close(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Session: session.State{}, Notices: orEmpty(notices)})
}

type (
	OpenSessionRequest struct {
		LessonID string `json:"lesson_id" validate:"required"`
	}

	SessionResponse struct {
		Session session.State    `json:"session"`
		Notices []session.Notice `json:"notices"`
	}
)

func newSessionResponse(state session.State, notices []session.Notice) SessionResponse {
	return SessionResponse{Session: state, Notices: orEmpty(notices)}
}

func orEmpty(notices []session.Notice) []session.Notice {
	if notices == nil {
		return []session.Notice{}
	}
	return notices
}
