package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/biz"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

// AdminHandler handles index maintenance, retrieval debugging and pattern review.
type AdminHandler struct {
	svc *biz.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *biz.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// SearchRequest represents a retrieval debug request.
type SearchRequest struct {
	Query     string   `json:"query" validate:"notblank"`
	Language  string   `json:"language" validate:"omitempty,language"`
	Category  string   `json:"category" validate:"omitempty,oneof=service project faq pricing knowledge about contact"`
	Limit     int      `json:"limit" validate:"min=0,max=50"`
	Threshold *float64 `json:"threshold" validate:"omitempty,gt=0,lte=1"`
	Diversify bool     `json:"diversify"`
}

// Search runs the retriever directly.
//
//	@Summary	Search
//	@Tags		index
//	@Param		request	body		SearchRequest	true	"request body"
//	@Success	200		{object}	response.Response
//	@Router		/rag/search [post]
func (h *AdminHandler) Search(c *gin.Context) {
	var req SearchRequest
	if !bind(c, &req, "") {
		return
	}
	lang := req.Language
	if lang == "" {
		lang = h.svc.DefaultLanguage()
	}

	hits, err := h.svc.Retriever().Search(c.Request.Context(), biz.SearchRequest{
		Query:     req.Query,
		Language:  lang,
		Category:  req.Category,
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Diversify: req.Diversify,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"query": req.Query, "language": lang, "total": len(hits), "results": hits})
}

// ReindexRequest represents a bulk reindex request.
type ReindexRequest struct {
	Kinds []string `json:"kinds" validate:"dive,oneof=service project faq pricing knowledge about contact"`
}

// Reindex rebuilds the index for the given kinds (all when empty).
//
//	@Summary	Reindex
//	@Tags		index
//	@Param		request	body		ReindexRequest	false	"request body"
//	@Success	200		{object}	response.Response
//	@Router		/rag/index/reindex [post]
func (h *AdminHandler) Reindex(c *gin.Context) {
	var req ReindexRequest
	if c.Request.ContentLength != 0 && !bind(c, &req, "") {
		return
	}

	start := time.Now()
	n, err := h.svc.Indexer().ReindexAll(c.Request.Context(), req.Kinds...)
	if err != nil {
		response.Fail(c, err)
		return
	}
	logger.Infow("reindex requested over HTTP", "kinds", strings.Join(req.Kinds, ","), "chunks", n)
	response.OK(c, gin.H{"processed": n, "duration_ms": time.Since(start).Milliseconds()})
}

// Sweep removes index rows whose source objects no longer exist.
//
//	@Summary	Sweep orphans
//	@Tags		index
//	@Success	200	{object}	response.Response
//	@Router		/rag/index/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	n, err := h.svc.Indexer().SweepOrphans(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

// ReindexObject reindexes a single object in all languages.
//
//	@Summary	Reindex object
//	@Tags		index
//	@Param		kind	path		string	true	"object kind"
//	@Param		id		path		int		true	"object id"
//	@Success	200		{object}	response.Response
//	@Router		/rag/index/{kind}/{id} [post]
func (h *AdminHandler) ReindexObject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.svc.Indexer().Reindex(c.Request.Context(), c.Param("kind"), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"kind": c.Param("kind"), "id": id, "indexed": n})
}

// Patterns lists learning patterns, optionally filtered by ?status=a,b.
//
//	@Summary	List patterns
//	@Tags		learning
//	@Param		status	query		string	false	"comma separated statuses"
//	@Success	200		{object}	response.Response
//	@Router		/rag/patterns [get]
func (h *AdminHandler) Patterns(c *gin.Context) {
	var statuses []string
	if s := c.Query("status"); s != "" {
		statuses = strings.Split(s, ",")
	}
	patterns, err := h.svc.Learner().Patterns(c.Request.Context(), statuses...)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"total": len(patterns), "patterns": patterns})
}

// ReviewRequest carries the reviewer name.
type ReviewRequest struct {
	Reviewer string `json:"reviewer" validate:"max=100"`
}

func (r ReviewRequest) reviewer() string {
	if r.Reviewer == "" {
		return "admin"
	}
	return r.Reviewer
}

// Approve approves a pattern and promotes it into the knowledge base.
//
//	@Summary	Approve pattern
//	@Tags		learning
//	@Param		id		path		int				true	"pattern id"
//	@Param		request	body		ReviewRequest	false	"request body"
//	@Success	200		{object}	response.Response
//	@Router		/rag/patterns/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if c.Request.ContentLength != 0 && !bind(c, &req, "") {
		return
	}
	p, err := h.svc.Learner().Approve(c.Request.Context(), id, req.reviewer())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, p)
}

// Reject rejects a pattern.
//
//	@Summary	Reject pattern
//	@Tags		learning
//	@Param		id		path		int				true	"pattern id"
//	@Param		request	body		ReviewRequest	false	"request body"
//	@Success	200		{object}	response.Response
//	@Router		/rag/patterns/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if c.Request.ContentLength != 0 && !bind(c, &req, "") {
		return
	}
	p, err := h.svc.Learner().Reject(c.Request.Context(), id, req.reviewer())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, p)
}

// Analyze runs the learning analysis over the configured window.
//
//	@Summary	Analyze conversations
//	@Tags		learning
//	@Success	200	{object}	response.Response{data=biz.AnalyzeResult}
//	@Router		/rag/learning/analyze [post]
func (h *AdminHandler) Analyze(c *gin.Context) {
	res, err := h.svc.Analyze(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// Stats returns consultant statistics together with the in-process counters.
//
//	@Summary	Statistics
//	@Tags		system
//	@Success	200	{object}	response.Response
//	@Router		/rag/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	data := gin.H{"store": stats}
	if m := h.svc.Metrics(); m != nil {
		data["runtime"] = m.Stats()
	}
	response.OK(c, data)
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Fail(c, errors.ErrInvalidParam.WithMessagef("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}
