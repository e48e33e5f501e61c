package config

import (
	"log"
	"os"

	"github.com/coregx/reactor/dispatch"
	"github.com/coregx/reactor/httpwire"
)

// Builder assembles a Config through functional options, in the same
// style as websocket.UpgradeOptions/NewHub in the module this package
// was generalized from.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder seeded with sane defaults for every
// option below.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{
		ReadBufferSize:  DefaultReadBufferSize,
		MaxReadLoops:    DefaultMaxReadLoops,
		MaxHeaderBytes:  DefaultMaxHeaderBytes,
		MaxFramePayload: DefaultMaxFramePayload,
		Charset:         DefaultCharset,
		DefaultHandler:  httpwire.NotFoundHandler,
		Decorator:       httpwire.Identity,
		NewDispatcher:   func() dispatch.Dispatcher { return dispatch.OnReadThread{} },
		HTTPRoutes:      make(map[string]HTTPHandler),
		WSRoutes:        make(map[string]Route),
		Logger:          log.New(os.Stderr, "reactor: ", log.LstdFlags),
	}}
}

// Option mutates a Builder in place.
type Option func(*Builder)

// Apply runs every opt against b in order.
func (b *Builder) Apply(opts ...Option) *Builder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build finalizes the Config. Later calls do not affect an already-built Config.
func (b *Builder) Build() Config {
	cfg := b.cfg
	cfg.HTTPRoutes = make(map[string]HTTPHandler, len(b.cfg.HTTPRoutes))
	for path, h := range b.cfg.HTTPRoutes {
		cfg.HTTPRoutes[path] = h
	}
	cfg.WSRoutes = make(map[string]Route, len(b.cfg.WSRoutes))
	for path, r := range b.cfg.WSRoutes {
		cfg.WSRoutes[path] = r
	}
	return cfg
}

// WithReadBufferSize overrides the initial per-connection read buffer size.
func WithReadBufferSize(n int) Option {
	return func(b *Builder) { b.cfg.ReadBufferSize = n }
}

// WithMaxReadLoops bounds how many parse iterations a single readiness
// notification may spend on one connection before yielding.
func WithMaxReadLoops(n int) Option {
	return func(b *Builder) { b.cfg.MaxReadLoops = n }
}

// WithMaxHeaderBytes bounds how many bytes of an unfinished request
// line, or of an unfinished header block, may be buffered before the
// connection is rejected as abusive. The two are checked separately.
func WithMaxHeaderBytes(n int) Option {
	return func(b *Builder) { b.cfg.MaxHeaderBytes = n }
}

// WithMaxFramePayload bounds a single WebSocket frame's payload length.
func WithMaxFramePayload(n uint64) Option {
	return func(b *Builder) { b.cfg.MaxFramePayload = n }
}

// WithCharset sets the charset reported to WebSocketHandler.OnPing's
// charset argument. It does not change how text frames are decoded:
// they are always validated and delivered as UTF-8.
func WithCharset(charset string) Option {
	return func(b *Builder) { b.cfg.Charset = charset }
}

// WithDefaultHandler overrides the handler invoked when no route
// matches a request's URI (default: 404).
func WithDefaultHandler(h httpwire.Handler) Option {
	return func(b *Builder) { b.cfg.DefaultHandler = h }
}

// WithDecorator wraps every routed HTTP handler, e.g. for auth gates
// that may short-circuit before the route handler runs.
func WithDecorator(d httpwire.Decorator) Option {
	return func(b *Builder) { b.cfg.Decorator = d }
}

// WithDispatcher overrides the per-connection Dispatcher factory. The
// default is dispatch.OnReadThread{} (inline, on the reactor
// goroutine); pass a factory returning *dispatch.FiberSession for
// connections whose handler work must not block the reactor.
func WithDispatcher(factory func() dispatch.Dispatcher) Option {
	return func(b *Builder) { b.cfg.NewDispatcher = factory }
}

// WithSessionFactory sets the per-connection session-state constructor.
func WithSessionFactory(f SessionFactory) Option {
	return func(b *Builder) { b.cfg.SessionFactory = f }
}

// WithCheckOrigin installs an Origin allow-list check applied during
// the WebSocket handshake. A nil check (the default) accepts any Origin.
func WithCheckOrigin(check func(origin string) bool) Option {
	return func(b *Builder) { b.cfg.CheckOrigin = check }
}

// WithSubprotocols records the server's supported
// Sec-WebSocket-Protocol values, in preference order, in
// Config.Subprotocols. The handshake does not read this field and
// sends no Sec-WebSocket-Protocol header.
func WithSubprotocols(protocols ...string) Option {
	return func(b *Builder) { b.cfg.Subprotocols = protocols }
}

// WithLogger overrides the destination for reactor-internal diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.cfg.Logger = l }
}

// HandleHTTP registers an HTTPHandler for an exact request URI.
func HandleHTTP(path string, h HTTPHandler) Option {
	return func(b *Builder) { b.cfg.HTTPRoutes[path] = h }
}

// HandleWebSocket registers a WebSocketHandler for an exact request
// URI, with an optional security gate evaluated during the handshake.
func HandleWebSocket(path string, h WebSocketHandler, security ...Security) Option {
	return func(b *Builder) {
		route := Route{Handler: h}
		if len(security) > 0 {
			route.Security = security[0]
		}
		b.cfg.WSRoutes[path] = route
	}
}
