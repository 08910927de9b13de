package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/progress"
)

type lessonApi struct {
	svc      *lesson.Service
	progSvc  *progress.Service
	validate *validator.Validate
}

func registerLessonAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *lesson.Service,
	progSvc *progress.Service,
	validate *validator.Validate,
) {
	api := lessonApi{
		svc:      svc,
		progSvc:  progSvc,
		validate: validate,
	}

	lg := g.Group("/lessons", jwt)
	lg.GET("", api.query, studentMiddleware())
	lg.POST("", api.create, teacherMiddleware())
	lg.GET("/:id/progress", api.retrieveProgress, studentMiddleware())
	lg.PUT("/:id/progress", api.saveProgress, studentMiddleware())

	g.GET("/progress", api.queryProgress, jwt, studentMiddleware())
}

// Handlers

// query returns the student's visible lessons already categorized into the
// portal's five views.
func (api *lessonApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	lessons, err := api.svc.VisibleTo(reqCtx, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying visible lessons")
	}
	records, err := api.progSvc.QueryByStudent(reqCtx, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying student progress")
	}

	return ctx.JSON(http.StatusOK, progress.Categorize(lessons, records))
}

func (api *lessonApi) create(ctx echo.Context) error {
	var data lesson.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	les, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}

	return ctx.JSON(http.StatusCreated, les)
}

func (api *lessonApi) retrieveProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	rec, err := api.progSvc.GetForLesson(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *lessonApi) saveProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data SaveProgressRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveProgressRequest")
	}

	rec, completed, err := api.progSvc.Upsert(
		ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.WatchTimeMinutes, data.ProgressPercent)
	if err != nil {
		return errors.Wrap(err, "saving lesson progress")
	}
	return ctx.JSON(http.StatusOK, SaveProgressResponse{Progress: rec, Completed: completed})
}

func (api *lessonApi) queryProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	recs, err := api.progSvc.QueryByStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying student progress")
	}
	if recs == nil {
		recs = []progress.Progress{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

type (
	SaveProgressRequest struct {
		WatchTimeMinutes int `json:"watch_time_minutes"`
		ProgressPercent  int `json:"progress_percent"`
	}

	SaveProgressResponse struct {
		Progress  progress.Progress `json:"progress"`
		Completed bool              `json:"completed"`
	}
)
