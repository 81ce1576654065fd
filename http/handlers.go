// server/http/handlers.go
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/auth"
	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/notes"
	"github.com/arbornote/arbor/tree"
	"github.com/arbornote/arbor/ws"
)

// Server exposes the note and tree endpoints.
type Server struct {
	svc *notes.Service
	hub *ws.Hub
	log zerolog.Logger
}

func NewServer(svc *notes.Service, hub *ws.Hub, log zerolog.Logger) *Server {
	return &Server{svc: svc, hub: hub, log: log}
}

// Register mounts all routes on the app. API routes sit behind token auth.
func (s *Server) Register(app *fiber.App, tokenHash string) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", auth.Middleware(tokenHash))

	api.Post("/notes", s.handleCreateNote)
	api.Get("/notes/:id", s.handleGetNote)
	api.Post("/notes/:id", s.handleUpdateContent)
	api.Post("/notes/:id/meta", s.handleUpdateMeta)

	api.Get("/tree", s.handleGetTree)
	api.Post("/tree/move", s.handleMoveTreeItem)

	api.Post("/trash", s.handleSoftDelete)
	api.Post("/trash/restore", s.handleRestore)
	api.Delete("/trash/:id", s.handleHardDelete)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(func(conn *fiberws.Conn) {
		s.hub.Register(conn)
		s.hub.HandleConnection(conn)
	}))
}

func (s *Server) handleCreateNote(c *fiber.Ctx) error {
	var req struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		ParentID string `json:"pid"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	note, err := s.svc.Create(c.Context(), domain.Note{
		ID:       req.ID,
		Title:    req.Title,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventNoteCreated, note.ID, &note)
	return c.Status(fiber.StatusCreated).JSON(note)
}

func (s *Server) handleGetNote(c *fiber.Ctx) error {
	note, err := s.svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(note)
}

func (s *Server) handleUpdateContent(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	note, err := s.svc.UpdateContent(c.Context(), c.Params("id"), req.Content)
	if err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventNoteUpdated, note.ID, &note)
	return c.JSON(note)
}

func (s *Server) handleUpdateMeta(c *fiber.Ctx) error {
	var patch domain.NotePatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	note, err := s.svc.UpdateMeta(c.Context(), c.Params("id"), patch)
	if err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventNoteUpdated, note.ID, &note)
	return c.JSON(note)
}

func (s *Server) handleGetTree(c *fiber.Ctx) error {
	t, err := s.svc.Tree(c.Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(t)
}

func (s *Server) handleMoveTreeItem(c *fiber.Ctx) error {
	var req struct {
		Source      tree.Position `json:"source"`
		Destination tree.Position `json:"destination"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	t, err := s.svc.MoveTreeItem(c.Context(), req.Source, req.Destination)
	if err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventTreeUpdated, "", nil)
	return c.JSON(t)
}

func (s *Server) handleSoftDelete(c *fiber.Ctx) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.ID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "note id required")
	}

	if err := s.svc.SoftDelete(c.Context(), req.ID); err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventNoteDeleted, req.ID, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleRestore(c *fiber.Ctx) error {
	var req struct {
		ID       string `json:"id"`
		ParentID string `json:"pid"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.ID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "note id required")
	}

	note, err := s.svc.Restore(c.Context(), req.ID, req.ParentID)
	if err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventNoteRestored, note.ID, &note)
	return c.JSON(note)
}

func (s *Server) handleHardDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.svc.HardDelete(c.Context(), id); err != nil {
		return mapError(err)
	}

	s.hub.Broadcast(ws.EventNoteDeleted, id, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func mapError(err error) error {
	switch {
	case domain.ErrNotFound.Has(err):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case domain.ErrInvalidParent.Has(err), domain.ErrInvalidPatch.Has(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
