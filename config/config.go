package config

import (
	"log"

	"github.com/coregx/reactor/dispatch"
	"github.com/coregx/reactor/httpwire"
)

// Defaults applied by NewBuilder before any Option runs.
const (
	DefaultReadBufferSize  = 1024
	DefaultMaxReadLoops    = 50
	DefaultMaxHeaderBytes  = 8192
	DefaultMaxFramePayload = 16 << 20 // 16 MiB; protects against unbounded allocation from a lying length header
	DefaultCharset         = "utf-8"
)

// Config is the immutable result of a Builder run. The reactor reads
// it once at startup; nothing mutates it afterward.
type Config struct {
	ReadBufferSize  int
	MaxReadLoops    int
	MaxHeaderBytes  int
	MaxFramePayload uint64
	Charset         string

	DefaultHandler httpwire.Handler
	Decorator      httpwire.Decorator

	NewDispatcher func() dispatch.Dispatcher

	HTTPRoutes map[string]HTTPHandler
	WSRoutes   map[string]Route

	SessionFactory SessionFactory
	CheckOrigin    func(origin string) bool
	Subprotocols   []string

	Logger *log.Logger
}
