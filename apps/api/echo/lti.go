package echoapi

import (
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/lti"
)

type launchAPI struct {
	deps ServerDeps
}

func registerLaunchAPI(app *echo.Echo, deps ServerDeps) {
	api := launchAPI{deps: deps}
	app.POST("/lti/launch/:course/:usage", api.launch)
}

type launchResponse struct {
	Username string `json:"username"`
	Graded   bool   `json:"graded"`
}

// launch handles an inbound Tool Consumer launch: verify the signature,
// resolve the learner, and register the grade passback route when the usage
// is gradable.
func (api launchAPI) launch(ctx echo.Context) error {
	req := ctx.Request()
	reqCtx := req.Context()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return errMalformedLaunch
	}

	consumer, err := api.deps.LTISvc.Authenticate(reqCtx, req, body)
	if err != nil {
		return err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return errMalformedLaunch
	}
	launch := lti.ParseLaunch(form)
	if err = launch.Validate(api.deps.Validate); err != nil {
		return err
	}

	courseID, usageID := ctx.Param("course"), ctx.Param("usage")
	gradable, err := api.deps.GradesSvc.Gradable(reqCtx, courseID, usageID)
	if err != nil {
		return errors.Wrap(err, "resolving usage gradability")
	}

	usr, assignment, err := api.deps.LTISvc.Provision(reqCtx, consumer, launch, courseID, usageID, gradable)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, launchResponse{
		Username: usr.Username,
		Graded:   assignment != nil,
	})
}
