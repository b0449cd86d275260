package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Route is a registered method and path pattern.
type Route struct {
	Method  string
	Pattern string
	Handler http.Handler
}

// Router matches paths with :param segments, e.g. /api/discussions/:id.
// Routes are registered before serving and never change afterwards.
type Router struct {
	routes []Route

	// NotFound is called when no route matches.
	NotFound http.Handler
}

// NewRouter creates an empty router with a JSON 404 handler.
func NewRouter() *Router {
	return &Router{
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		}),
	}
}

// Handle registers handler for method and pattern.
func (rt *Router) Handle(method, pattern string, handler http.Handler) {
	rt.routes = append(rt.routes, Route{Method: method, Pattern: pattern, Handler: handler})
}

// GET registers a handler function for GET requests.
func (rt *Router) GET(pattern string, handler http.HandlerFunc) {
	rt.Handle(http.MethodGet, pattern, handler)
}

// Routes returns the registered routes in registration order.
func (rt *Router) Routes() []Route {
	return append([]Route(nil), rt.routes...)
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathMatched := false
	for _, route := range rt.routes {
		params, ok := matchPath(route.Pattern, r.URL.Path)
		if !ok {
			continue
		}
		pathMatched = true
		if route.Method != r.Method {
			continue
		}
		if m, ok := r.Context().Value(matchedRouteKey).(*matchedRoute); ok {
			m.pattern = route.Pattern
		}
		if len(params) > 0 {
			r = r.WithContext(context.WithValue(r.Context(), pathParamsKey, params))
		}
		route.Handler.ServeHTTP(w, r)
		return
	}
	if pathMatched {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method "+r.Method+" is not allowed")
		return
	}
	rt.NotFound.ServeHTTP(w, r)
}

// matchPath matches path against pattern and extracts :param segments.
func matchPath(pattern, path string) (map[string]string, bool) {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternParts) != len(pathParts) {
		return nil, false
	}

	var params map[string]string
	for i, part := range patternParts {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			if pathParts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = pathParts[i]
		} else if part != pathParts[i] {
			return nil, false
		}
	}
	return params, true
}

type contextKey string

const (
	pathParamsKey   contextKey = "pathParams"
	matchedRouteKey contextKey = "matchedRoute"
)

// matchedRoute lets middleware learn which pattern served a request.
type matchedRoute struct {
	pattern string
}

// PathParam returns a path parameter of the matched route.
func PathParam(r *http.Request, name string) string {
	params, _ := r.Context().Value(pathParamsKey).(map[string]string)
	return params[name]
}

// -----------------------------------------------------------------------------
// Response Helpers
// -----------------------------------------------------------------------------

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is the error part of a failed response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes data in a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Error: &APIError{Code: code, Message: message},
	})
}
