package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
)

// emitter is the part of socketio.Conn the controller writes to.
type emitter interface {
	ID() string
	Emit(event string, v ...interface{})
}

type socketController struct {
	srv *server

	mu      sync.Mutex
	sockets map[string]socketScope
}

// socketScope bounds every attempt started by one connection.
type socketScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newSocketController(srv *server) *socketController {
	return &socketController{srv: srv, sockets: make(map[string]socketScope)}
}

// socketContext returns the context shared by a connection's attempts,
// creating it on first use.
func (c *socketController) socketContext(id string) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scope, ok := c.sockets[id]; ok {
		return scope.ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.sockets[id] = socketScope{ctx: ctx, cancel: cancel}
	return ctx
}

// disconnect aborts any in-flight download or classification for id.
func (c *socketController) disconnect(id string) {
	c.mu.Lock()
	scope, ok := c.sockets[id]
	delete(c.sockets, id)
	c.mu.Unlock()
	if ok {
		scope.cancel()
	}
}

func (c *socketController) emitModelInfo(socket emitter) {
	socket.Emit("modelInfo", c.srv.stats)
}

// handleClassifyYouTube runs one YouTube attempt and streams the same
// messages the HTML page shows. Nothing more is emitted once ctx is
// cancelled by a disconnect.
func (c *socketController) handleClassifyYouTube(ctx context.Context, socket emitter, url string) {
	logger := c.srv.logger.With(slog.String("socketID", socket.ID()))

	path, err := c.srv.acquireYouTube(ctx, url, func(msg string) {
		socket.Emit("status", msg)
	})
	if err != nil {
		c.fail(ctx, logger, socket, err)
		return
	}
	if ctx.Err() != nil {
		logger.InfoContext(ctx, "client left before analysis", slog.String("url", url))
		return
	}

	result, err := c.srv.classify(ctx, path)
	if err != nil {
		c.fail(ctx, logger, socket, err)
		return
	}

	logger.InfoContext(ctx, "emitting classification result",
		slog.String("label", result.Label),
		slog.Float64("latencyMs", result.LatencyMs),
	)
	socket.Emit("result", result)
}

func (c *socketController) fail(ctx context.Context, logger *slog.Logger, socket emitter, err error) {
	if ctx.Err() != nil {
		logger.InfoContext(ctx, "attempt abandoned after disconnect", slog.Any("reason", err))
		return
	}
	c.srv.logFailure(ctx, "youtube classification failed", err)
	c.emitFailure(socket, err)
}

func (c *socketController) emitFailure(socket emitter, err error) {
	failure := describeFailure(err)
	if failure.Warning {
		socket.Emit("warning", apiError{Message: failure.Message, Stage: string(failure.Stage)})
		return
	}
	socket.Emit("analysisError", apiError{Message: failure.Message, Detail: failure.Detail, Stage: string(failure.Stage)})
}

func allowOrigin(r *http.Request) bool {
	return true
}

func newSocketServer(controller *socketController) *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOrigin,
			},
			&polling.Transport{
				CheckOrigin: allowOrigin,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		controller.socketContext(socket.ID())
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		controller.emitModelInfo(socket)
		return nil
	})

	server.OnEvent("/", "requestModelInfo", func(socket socketio.Conn) {
		controller.emitModelInfo(socket)
	})

	server.OnEvent("/", "classifyYouTube", func(socket socketio.Conn, url string) {
		log.Printf("classifyYouTube received from %s: %q\n", socket.ID(), url)
		ctx := controller.socketContext(socket.ID())
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in classifyYouTube for socket %s: %v\n", socket.ID(), r)
					socket.Emit("analysisError", apiError{Message: "internal server error during processing"})
				}
			}()
			controller.handleClassifyYouTube(ctx, socket, url)
		}()
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
		controller.disconnect(s.ID())
	})

	return server
}
