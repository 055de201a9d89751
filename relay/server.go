package relay

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/phanxgames/ardw"
)

// PeerHeader carries a peer's identity on both the stream and publish
// requests, so a peer does not receive its own messages back.
const PeerHeader = "X-Peer-ID"

// keepAliveInterval spaces SSE comments on an idle stream.
const keepAliveInterval = 15 * time.Second

// Documents are the raw board and schematic JSON served to peers.
type Documents struct {
	Board     []byte
	Schematic []byte
}

// Server exposes a Hub over HTTP: POST /events publishes, GET /events
// subscribes as a Server-Sent Events stream.
type Server struct {
	hub  *Hub
	docs Documents
	app  *fiber.App

	done      chan struct{}
	closeOnce sync.Once
}

// ============================================================
// Server Setup
// ============================================================

// NewServer builds the HTTP surface of hub.
func NewServer(hub *Hub, docs Documents) *Server {
	s := &Server{
		hub:  hub,
		docs: docs,
		done: make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		ReadTimeout: 10 * time.Second,
		AppName:     "ardw relay",
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", s.health)
	app.Get("/pcbdata", s.document(func(d Documents) []byte { return d.Board }))
	app.Get("/schdata", s.document(func(d Documents) []byte { return d.Schematic }))
	app.Get("/state", s.state)
	app.Get("/events", s.subscribe)
	app.Post("/events", s.publish)

	s.app = app
	return s
}

// App returns the underlying fiber app, for tests and embedding.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown ends open streams and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.app.ShutdownWithContext(ctx)
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
		"peers":  s.hub.Peers(),
	})
}

func (s *Server) document(pick func(Documents) []byte) fiber.Handler {
	return func(c fiber.Ctx) error {
		data := pick(s.docs)
		if len(data) == 0 {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "document not loaded"})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	}
}

func (s *Server) state(c fiber.Ctx) error {
	st := s.hub.State()
	sel := fiber.Map{"type": st.Selection.Kind.String()}
	switch st.Selection.Kind {
	case ardw.SelectComponent, ardw.SelectPin:
		sel["val"] = st.Selection.ID
	case ardw.SelectNet:
		sel["val"] = st.Selection.Net
	default:
		sel["val"] = nil
	}
	return c.JSON(fiber.Map{
		"selection": sel,
		"mode":      st.Mode,
		"calibration": fiber.Map{
			"tx": st.Calibration.TX,
			"ty": st.Calibration.TY,
			"r":  st.Calibration.R,
			"z":  st.Calibration.Z,
		},
		"tools":          s.toolState(),
		"session":        s.sessionState(),
		"saved_sessions": s.hub.SavedSessions(),
		"peers":          s.hub.Peers(),
	})
}

func (s *Server) toolState() fiber.Map {
	m := fiber.Map{}
	for _, t := range toolOrder {
		m[t.name] = s.hub.ToolReady(t.name)
	}
	return m
}

func (s *Server) sessionState() any {
	sess, ok := s.hub.Session()
	if !ok {
		return nil
	}
	return fiber.Map{
		"name":      sess.Name,
		"notes":     sess.Notes,
		"cards":     len(sess.Cards),
		"recording": sess.Recording,
	}
}

func (s *Server) publish(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	msg, err := ardw.DecodeMessage(c.Body())
	if err != nil {
		ardw.Logger().Warn("rejecting message", "err", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.hub.Publish(c.Get(PeerHeader), msg); err != nil {
		ardw.Logger().Warn("rejecting message", "kind", string(msg.Kind()), "err", err)
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(http.StatusAccepted)
}

func (s *Server) subscribe(c fiber.Ctx) error {
	sub, err := s.hub.Join(c.Get(PeerHeader))
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set(PeerHeader, sub.ID)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer s.hub.Leave(sub)
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case data, ok := <-sub.C:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			case <-s.done:
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}
