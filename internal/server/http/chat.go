package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

var conversationNotFound = ErrorCase{Err: errs.ErrNotFound, Status: http.StatusNotFound, Message: "Conversation not found"}

// conversationID parses the :id path parameter. A malformed id cannot name a
// conversation, so it is reported as not found.
func (s *Server) conversationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil || id == uuid.Nil {
		s.fail(c, errs.ErrNotFound, conversationNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createDM(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !s.bindJSON(c, "create_dm", &req) {
		return
	}
	other, err := uuid.FromString(req.UserID)
	if err != nil {
		s.fail(c, errs.Validationf("The selected user id is invalid."))
		return
	}
	view, err := s.d.Conversations.CreateOrGetDM(c.Request.Context(), principal(c), other)
	if err != nil {
		s.fail(c, err, ErrorCase{Err: errs.ErrNotFound, Status: http.StatusNotFound, Message: "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conversation": newConversationView(view)})
}

func (s *Server) listConversations(c *gin.Context) {
	list, err := s.d.Conversations.List(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conversations": newSummaryViews(list)})
}

func (s *Server) listMessages(c *gin.Context) {
	id, ok := s.conversationID(c)
	if !ok {
		return
	}
	msgs, err := s.d.Messages.List(c.Request.Context(), principal(c), id)
	if err != nil {
		s.fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": newMessageViews(msgs)})
}

func (s *Server) sendMessage(c *gin.Context) {
	id, ok := s.conversationID(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !s.bindJSON(c, "send_message", &req) {
		return
	}
	m, err := s.d.Messages.Send(c.Request.Context(), principal(c), id, req.Body)
	if err != nil {
		s.fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "message": newMessageView(m)})
}

func (s *Server) clearConversation(c *gin.Context) {
	s.visibility(c, s.d.Conversations.Clear, "Chat cleared for you")
}

func (s *Server) hideConversation(c *gin.Context) {
	s.visibility(c, s.d.Conversations.Hide, "Chat deleted for you")
}

func (s *Server) unhideConversation(c *gin.Context) {
	s.visibility(c, s.d.Conversations.Unhide, "Chat restored for you")
}

type visibilityOp func(ctx context.Context, p model.Principal, convID uuid.UUID) error

func (s *Server) visibility(c *gin.Context, op visibilityOp, msg string) {
	id, ok := s.conversationID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), principal(c), id); err != nil {
		s.fail(c, err, conversationNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": msg})
}
