package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/handoff/internal/handlers"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]RouteHandler

// RouteByMethod dispatches on r.Method. Anything unmapped gets a JSON 405
// with an Allow header listing the mapped methods.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	if handler, ok := routes[r.Method]; ok {
		handler(w, r)
		return
	}

	allowed := make([]string, 0, len(routes))
	for method := range routes {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// RouteCRUD maps the non-nil handlers onto GET, POST, PUT and DELETE
func RouteCRUD(w http.ResponseWriter, r *http.Request, get, post, put, del RouteHandler) {
	routes := make(MethodRouter, 4)
	for method, h := range map[string]RouteHandler{
		http.MethodGet:    get,
		http.MethodPost:   post,
		http.MethodPut:    put,
		http.MethodDelete: del,
	} {
		if h != nil {
			routes[method] = h
		}
	}
	RouteByMethod(w, r, routes)
}

// RouteResourceCollection: GET lists, POST creates
func RouteResourceCollection(w http.ResponseWriter, r *http.Request, list, create RouteHandler) {
	RouteCRUD(w, r, list, create, nil, nil)
}

// RouteResourceItem: GET reads, PUT updates, DELETE removes
func RouteResourceItem(w http.ResponseWriter, r *http.Request, get, update, del RouteHandler) {
	RouteCRUD(w, r, get, nil, update, del)
}
