// Package handler provides HTTP handlers for the consultant service.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/biz"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/response"
	"github.com/lazysoft/consultant/pkg/utils/validator"
)

// ConsultantHandler handles the dialogue, session and quote requests.
type ConsultantHandler struct {
	svc *biz.Service
}

// NewConsultantHandler creates a new ConsultantHandler.
func NewConsultantHandler(svc *biz.Service) *ConsultantHandler {
	return &ConsultantHandler{svc: svc}
}

// bind 解析 JSON 请求体并校验，失败时已写入错误响应。
func bind(c *gin.Context, req any, lang string) bool {
	if lang != "" {
		c.Set(response.ContextKeyLanguage, lang)
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return false
	}
	if verrs := validator.StructWithLang(req, response.Language(c)); verrs != nil {
		response.FailWithMessage(c, errors.ErrValidation, verrs.First())
		return false
	}
	return true
}

// TurnRequest represents a dialogue turn request.
type TurnRequest struct {
	SessionID string `json:"session_id" validate:"required,session_id"`
	Query     string `json:"query" validate:"notblank,max=4000"`
	Language  string `json:"language" validate:"omitempty,language"`
}

// Turn handles one dialogue turn.
//
//	@Summary		Dialogue turn
//	@Description	Answers one user message in the context of the session.
//	@Tags			dialogue
//	@Accept			json
//	@Produce		json
//	@Param			language	query		string				false	"response language (uk, en, pl)"
//	@Param			request		body		TurnRequest			true	"request body"
//	@Success		200			{object}	response.Response{data=biz.TurnResponse}
//	@Failure		409			{object}	response.Response
//	@Router			/rag/turn [post]
func (h *ConsultantHandler) Turn(c *gin.Context) {
	var req TurnRequest
	if !bind(c, &req, c.Query("language")) {
		return
	}
	if req.Language != "" {
		c.Set(response.ContextKeyLanguage, req.Language)
	}

	resp, err := h.svc.Turn(c.Request.Context(), biz.TurnRequest{
		SessionID: req.SessionID,
		Query:     req.Query,
		Language:  req.Language,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		logger.Warnw("turn failed", "session_id", req.SessionID, "error", err.Error())
		response.Fail(c, err)
		return
	}
	response.OK(c, resp)
}

// StartSessionRequest represents a new session request.
type StartSessionRequest struct {
	Language string `json:"language" validate:"omitempty,language"`
}

// StartSession creates a session and returns the welcome message.
//
//	@Summary	Start session
//	@Tags		dialogue
//	@Param		request	body		StartSessionRequest	false	"request body"
//	@Success	200		{object}	response.Response{data=biz.StartSessionResponse}
//	@Router		/rag/sessions [post]
func (h *ConsultantHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if c.Request.ContentLength != 0 && !bind(c, &req, "") {
		return
	}

	resp, err := h.svc.StartSession(c.Request.Context(), biz.StartSessionRequest{
		Language:  req.Language,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, resp)
}

// Messages returns the chat history of a session.
//
//	@Summary	Session history
//	@Tags		dialogue
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	response.Response
//	@Failure	404	{object}	response.Response
//	@Router		/rag/sessions/{id}/messages [get]
func (h *ConsultantHandler) Messages(c *gin.Context) {
	msgs, err := h.svc.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": c.Param("id"), "messages": msgs})
}

// RateRequest represents a chat rating.
type RateRequest struct {
	Rating   int    `json:"rating" validate:"min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

// Rate stores the satisfaction score of a session.
//
//	@Summary	Rate session
//	@Tags		dialogue
//	@Param		id		path		string		true	"session id"
//	@Param		request	body		RateRequest	true	"request body"
//	@Success	200		{object}	response.Response
//	@Router		/rag/sessions/{id}/rating [post]
func (h *ConsultantHandler) Rate(c *gin.Context) {
	var req RateRequest
	if !bind(c, &req, "") {
		return
	}
	if err := h.svc.Rate(c.Request.Context(), c.Param("id"), req.Rating, req.Feedback); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": c.Param("id"), "rating": req.Rating})
}

// QuoteRequest represents a quote request form.
type QuoteRequest struct {
	SessionID   string `json:"session_id" validate:"required,session_id"`
	ClientName  string `json:"client_name" validate:"notblank,max=200"`
	ClientEmail string `json:"client_email" validate:"required,email"`
	Phone       string `json:"phone" validate:"max=50"`
	Company     string `json:"company" validate:"max=200"`
	Message     string `json:"message" validate:"notblank,max=4000"`
	Language    string `json:"language" validate:"omitempty,language"`
}

// RequestQuote stores a quote request and emits the lead.
//
//	@Summary	Request quote
//	@Tags		quote
//	@Param		language	query		string			false	"response language (uk, en, pl)"
//	@Param		request		body		QuoteRequest	true	"request body"
//	@Success	200			{object}	response.Response
//	@Router		/rag/quote [post]
func (h *ConsultantHandler) RequestQuote(c *gin.Context) {
	var req QuoteRequest
	if !bind(c, &req, c.Query("language")) {
		return
	}
	lang := req.Language
	if lang == "" {
		lang = h.svc.DefaultLanguage()
	}

	quote, err := h.svc.RequestQuote(c.Request.Context(), biz.QuoteInput{
		SessionID:   req.SessionID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Phone:       req.Phone,
		Company:     req.Company,
		Message:     req.Message,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"request_id": quote.RequestID,
		"status":     quote.Status,
		"message":    biz.QuoteAccepted(lang),
	})
}

// GetQuote returns a stored quote request.
//
//	@Summary	Get quote
//	@Tags		quote
//	@Param		id	path		string	true	"quote request id"
//	@Success	200	{object}	response.Response
//	@Router		/rag/quote/{id} [get]
func (h *ConsultantHandler) GetQuote(c *gin.Context) {
	quote, err := h.svc.Quotes().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, quote)
}

// QuoteStatusRequest represents a quote status change.
type QuoteStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new analyzed quoted consulted converted closed"`
}

// UpdateQuoteStatus advances the status of a quote request.
//
//	@Summary	Update quote status
//	@Tags		quote
//	@Param		id		path		string				true	"quote request id"
//	@Param		request	body		QuoteStatusRequest	true	"request body"
//	@Success	200		{object}	response.Response
//	@Router		/rag/quote/{id}/status [post]
func (h *ConsultantHandler) UpdateQuoteStatus(c *gin.Context) {
	var req QuoteStatusRequest
	if !bind(c, &req, "") {
		return
	}
	if err := h.svc.Quotes().UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"request_id": c.Param("id"), "status": req.Status})
}
