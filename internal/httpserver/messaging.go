package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kwikflow/internal/repo"
)

type conversationRequest struct {
	PhoneNumber   string     `json:"phoneNumber" binding:"required,max=50"`
	ContactName   *string    `json:"contactName" binding:"omitempty,max=200"`
	Status        string     `json:"status" binding:"omitempty,max=50"`
	AssignedTo    *string    `json:"assignedTo" binding:"omitempty,max=200"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
}

type conversationPatchRequest struct {
	ContactName *string `json:"contactName" binding:"omitnil,max=200"`
	Status      *string `json:"status" binding:"omitnil,required,max=50"`
	AssignedTo  *string `json:"assignedTo" binding:"omitnil,max=200"`
}

type messageRequest struct {
	ConversationID int64      `json:"conversationId" binding:"required,gt=0"`
	Content        string     `json:"content" binding:"required"`
	Sender         string     `json:"sender" binding:"required,max=200"`
	IsFromUser     *bool      `json:"isFromUser" binding:"required"`
	MessageType    string     `json:"messageType" binding:"omitempty,max=50"`
	Status         string     `json:"status" binding:"omitempty,max=50"`
	Timestamp      *time.Time `json:"timestamp"`
}

type sessionRequest struct {
	ConversationID int64      `json:"conversationId" binding:"required,gt=0"`
	SessionType    string     `json:"sessionType" binding:"required,max=50"`
	StartedAt      *time.Time `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt"`
	Metadata       *jsonText  `json:"metadata"`
}

type sessionPatchRequest struct {
	EndedAt     *time.Time `json:"endedAt"`
	SessionType *string    `json:"sessionType" binding:"omitnil,required,max=50"`
	Metadata    *jsonText  `json:"metadata"`
}

type ruleRequest struct {
	Name       string    `json:"name" binding:"required,max=200"`
	Trigger    string    `json:"trigger" binding:"required,oneof=new_conversation message_received"`
	Actions    jsonText  `json:"actions" binding:"required,jsonarray"`
	Conditions *jsonText `json:"conditions" binding:"omitnil,jsonobject"`
	IsActive   *bool     `json:"isActive"`
}

type rulePatchRequest struct {
	Name       *string   `json:"name" binding:"omitnil,required,max=200"`
	Trigger    *string   `json:"trigger" binding:"omitnil,oneof=new_conversation message_received"`
	Actions    *jsonText `json:"actions" binding:"omitnil,required,jsonarray"`
	Conditions *jsonText `json:"conditions" binding:"omitnil,jsonobject"`
	IsActive   *bool     `json:"isActive"`
}

// GET /api/conversations
func (h *handlers) listConversations(c *gin.Context) {
	convs, err := h.svc.ListConversations(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// POST /api/conversations
func (h *handlers) createConversation(c *gin.Context) {
	var body conversationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	conv, err := h.svc.CreateConversation(c.Request.Context(), repo.NewConversation{
		PhoneNumber:   body.PhoneNumber,
		ContactName:   body.ContactName,
		Status:        body.Status,
		LastMessageAt: utcPtr(body.LastMessageAt),
		AssignedTo:    body.AssignedTo,
	})
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// GET /api/conversations/:id
func (h *handlers) getConversation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	conv, err := h.svc.GetConversation(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, h.logger, "Conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// PATCH /api/conversations/:id
func (h *handlers) updateConversation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body conversationPatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	conv, err := h.svc.UpdateConversation(c.Request.Context(), id, repo.ConversationPatch{
		ContactName: body.ContactName,
		Status:      body.Status,
		AssignedTo:  body.AssignedTo,
	})
	if err != nil {
		respondStoreError(c, h.logger, "Conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// GET /api/conversations/:id/messages
func (h *handlers) listMessages(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	msgs, err := h.svc.ListMessages(c.Request.Context(), id)
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// POST /api/messages
func (h *handlers) createMessage(c *gin.Context) {
	var body messageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	in := repo.NewMessage{
		ConversationID: body.ConversationID,
		Content:        body.Content,
		Sender:         body.Sender,
		MessageType:    body.MessageType,
		Status:         body.Status,
		IsFromUser:     *body.IsFromUser,
	}
	if body.Timestamp != nil {
		in.Timestamp = body.Timestamp.UTC()
	}
	msg, err := h.svc.CreateMessage(c.Request.Context(), in)
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GET /api/sessions?conversationId=
func (h *handlers) listSessions(c *gin.Context) {
	var filter *int64
	if raw := c.Query("conversationId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(c, http.StatusBadRequest, "Invalid conversationId")
			return
		}
		filter = &id
	}
	sessions, err := h.svc.ListSessions(c.Request.Context(), filter)
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// POST /api/sessions
func (h *handlers) createSession(c *gin.Context) {
	var body sessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	in := repo.NewSession{
		ConversationID: body.ConversationID,
		SessionType:    body.SessionType,
		EndedAt:        utcPtr(body.EndedAt),
		Metadata:       body.Metadata.ptr(),
	}
	if body.StartedAt != nil {
		in.StartedAt = body.StartedAt.UTC()
	}
	session, err := h.svc.CreateSession(c.Request.Context(), in)
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// PATCH /api/sessions/:id
func (h *handlers) updateSession(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body sessionPatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	session, err := h.svc.UpdateSession(c.Request.Context(), id, repo.SessionPatch{
		EndedAt:     utcPtr(body.EndedAt),
		SessionType: body.SessionType,
		Metadata:    body.Metadata.ptr(),
	})
	if err != nil {
		respondStoreError(c, h.logger, "Session", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GET /api/automation-rules
func (h *handlers) listRules(c *gin.Context) {
	rules, err := h.svc.ListAutomationRules(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// POST /api/automation-rules
func (h *handlers) createRule(c *gin.Context) {
	var body ruleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	rule, err := h.svc.CreateAutomationRule(c.Request.Context(), repo.NewAutomationRule{
		Name:       body.Name,
		Trigger:    body.Trigger,
		Conditions: body.Conditions.ptr(),
		Actions:    string(body.Actions),
		IsActive:   body.IsActive,
	})
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GET /api/automation-rules/:id
func (h *handlers) getRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rule, err := h.svc.GetAutomationRule(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, h.logger, "Automation rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// PATCH /api/automation-rules/:id
func (h *handlers) updateRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body rulePatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	rule, err := h.svc.UpdateAutomationRule(c.Request.Context(), id, repo.AutomationRulePatch{
		Name:       body.Name,
		Trigger:    body.Trigger,
		Conditions: body.Conditions.ptr(),
		Actions:    body.Actions.ptr(),
		IsActive:   body.IsActive,
	})
	if err != nil {
		respondStoreError(c, h.logger, "Automation rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DELETE /api/automation-rules/:id
func (h *handlers) deleteRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteAutomationRule(c.Request.Context(), id); err != nil {
		respondStoreError(c, h.logger, "Automation rule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
