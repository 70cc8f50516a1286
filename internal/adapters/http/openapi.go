package httpadapter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openAPISpec []byte

// requestValidator checks requests against the embedded API contract before
// they reach a handler. Paths the contract does not describe pass through.
type requestValidator struct {
	router routers.Router
}

func newRequestValidator() (*requestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &requestValidator{router: router}, nil
}

func (v *requestValidator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := v.router.FindRoute(r)
		switch {
		case isRouteError(err, routers.ErrPathNotFound):
			next.ServeHTTP(w, r)
			return
		case isRouteError(err, routers.ErrMethodNotAllowed):
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				MultiError: false,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isRouteError matches the router's lookup failures, which carry the sentinel
// only as their Reason text.
func isRouteError(err, sentinel error) bool {
	var routeErr *routers.RouteError
	return errors.As(err, &routeErr) && routeErr.Reason == sentinel.Error()
}
