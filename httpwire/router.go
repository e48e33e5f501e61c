package httpwire

// ResponseWriter is the minimal response-writing surface a Handler
// gets. The reactor's implementation buffers the body and writes the
// status line, headers and body together once the handler returns.
type ResponseWriter interface {
	// WriteHeader sets the status code, reason phrase, and
	// Content-Type before any body bytes are written. Calling it more
	// than once, or after Write, is a no-op.
	WriteHeader(status int, reason, contentType string)
	// Write appends body bytes, implicitly finalizing a 200 OK header
	// if WriteHeader was never called.
	Write(p []byte) (int, error)
}

// Handler handles one fully-parsed HTTP request.
type Handler func(req *Request, w ResponseWriter)

// Decorator wraps a Handler, e.g. to short-circuit on failed
// authentication before the wrapped handler ever runs.
type Decorator func(Handler) Handler

// Identity is the default Decorator: it returns next unchanged.
func Identity(next Handler) Handler { return next }

// Router performs exact-match URI routing over a handler map built
// once at startup and never mutated afterward.
type Router struct {
	routes  map[string]Handler
	def     Handler
	decorator Decorator
}

// RouterOption configures a Router at construction time, in the same
// functional-options style as UpgradeOptions/NewHub.
type RouterOption func(*Router)

// WithDefaultHandler overrides the default handler run on a routing
// miss. The zero value uses NotFoundHandler.
func WithDefaultHandler(h Handler) RouterOption {
	return func(r *Router) { r.def = h }
}

// WithDecorator wraps every route (including the default handler)
// with d. The zero value uses Identity.
func WithDecorator(d Decorator) RouterOption {
	return func(r *Router) { r.decorator = d }
}

// NewRouter builds a Router from a path->handler map plus options.
func NewRouter(routes map[string]Handler, opts ...RouterOption) *Router {
	r := &Router{
		routes:    routes,
		def:       NotFoundHandler,
		decorator: Identity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle looks up req.URI in the route table and invokes the
// (decorated) matching handler, or the (decorated) default handler on
// a miss.
func (r *Router) Handle(req *Request, w ResponseWriter) {
	h, ok := r.routes[req.URI]
	if !ok {
		h = r.def
	}
	r.decorator(h)(req, w)
}

// NotFoundHandler is the built-in default handler: a 404 response
// with the missed URI echoed in plain text.
func NotFoundHandler(req *Request, w ResponseWriter) {
	w.WriteHeader(404, "Not Found", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(req.URI + " Not Found"))
}
