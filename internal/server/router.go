package server

import (
	"net/http"
)

// newCallbackMux serves every route of handler behind mw. The first middleware is the outermost.
//
// Callbacks arrive as browser redirects, so anything but GET is refused.
func newCallbackMux(handler Handler, mw ...Middleware) http.Handler {
	wrapped := chain(onlyGet(handler), mw...)

	mux := http.NewServeMux()
	for _, route := range handler.Routes() {
		mux.Handle(route, wrapped)
	}
	return mux
}

func onlyGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
