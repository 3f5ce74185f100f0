package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/app"
)

// QuoteHandler handles quote-related HTTP endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		service: service,
	}
}

// ListQuotes handles GET /quotes
// Returns quotes matching the optional filters, newest first unless sort_by says otherwise.
//
// @Summary List quotes
// @Tags quotes
// @Produce json
// @Param theme query string false "Exact theme"
// @Param subtheme query string false "Exact subtheme"
// @Param author query string false "Exact author"
// @Param tags query string false "Comma-separated tags, all required"
// @Param date_from query string false "Inclusive lower bound on created_at"
// @Param date_to query string false "Inclusive upper bound on created_at"
// @Param sort_by query string false "title, text, theme or created_at"
// @Param sort_order query string false "asc or desc"
// @Param limit query int false "1-100, default 50"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var req dto.ListQuotesRequest
	if !bindQuery(c, &req) {
		return
	}

	quotes, err := h.service.List(c.Request.Context(), app.ListParams{
		Theme:    req.Theme,
		Subtheme: req.Subtheme,
		Author:   req.Author,
		Tags:     req.Tags,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Sort:     sortParams(req.SortRequest),
		Page:     req.Page(),
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuotes(quotes))
}

// GetRandomQuote handles GET /quotes/random
// Returns one quote chosen uniformly from the collection.
//
// @Summary Get a random quote
// @Tags quotes
// @Produce json
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/random [get]
func (h *QuoteHandler) GetRandomQuote(c *gin.Context) {
	quote, err := h.service.Random(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// GetQuoteByID handles GET /quotes/:id
//
// @Summary Get a quote by ID
// @Tags quotes
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/{id} [get]
func (h *QuoteHandler) GetQuoteByID(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}

	quote, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// CreateQuote handles POST /quotes
//
// @Summary Create a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.CreateQuoteRequest true "Quote to create"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if !bindBody(c, &req) {
		return
	}

	quote, err := h.service.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromQuote(quote))
}

// UpdateQuote handles PUT /quotes/:id
// Applies only the fields present and non-null in the body.
//
// @Summary Update a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param quote body dto.UpdateQuoteRequest true "Fields to change"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/{id} [put]
func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateQuoteRequest
	if !bindBody(c, &req) {
		return
	}

	quote, err := h.service.Update(c.Request.Context(), id, req.ToDomain())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(quote))
}

// DeleteQuote handles DELETE /quotes/:id
//
// @Summary Delete a quote
// @Tags quotes
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} dto.DeleteQuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/{id} [delete]
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDeleteQuoteResponse(deleted))
}

// SearchQuotes handles GET /quotes/search
// Matches the keyword case-insensitively against the selected fields.
//
// @Summary Search quotes by keyword
// @Tags quotes
// @Produce json
// @Param q query string true "Keyword"
// @Param search_fields query string false "Comma-separated fields, default title,text"
// @Param search_type query string false "or (any field) or and (every field)"
// @Param sort_by query string false "title, text, theme or created_at"
// @Param sort_order query string false "asc or desc"
// @Param limit query int false "1-100, default 50"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/search [get]
func (h *QuoteHandler) SearchQuotes(c *gin.Context) {
	var req dto.SearchQuotesRequest
	if !bindQuery(c, &req) {
		return
	}

	quotes, err := h.service.Search(c.Request.Context(), app.SearchParams{
		Keyword: req.Query,
		Fields:  req.SearchFields,
		Mode:    req.SearchType,
		Sort:    sortParams(req.SortRequest),
		Page:    req.Page(),
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuotes(quotes))
}

// SearchByTags handles GET /quotes/tags
// With match_all=true every listed tag is required, otherwise any one suffices.
//
// @Summary Search quotes by tags
// @Tags quotes
// @Produce json
// @Param tags query string true "Comma-separated tags"
// @Param match_all query bool false "Require every tag"
// @Param sort_by query string false "title, text, theme or created_at"
// @Param sort_order query string false "asc or desc"
// @Param limit query int false "1-100, default 50"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/tags [get]
func (h *QuoteHandler) SearchByTags(c *gin.Context) {
	var req dto.TagSearchRequest
	if !bindQuery(c, &req) {
		return
	}

	quotes, err := h.service.SearchByTags(c.Request.Context(), app.TagSearchParams{
		Tags:     req.Tags,
		MatchAll: req.MatchAll,
		Sort:     sortParams(req.SortRequest),
		Page:     req.Page(),
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuotes(quotes))
}

// ListByTheme handles GET /quotes/theme/:theme
//
// @Summary List quotes with an exact theme
// @Tags quotes
// @Produce json
// @Param theme path string true "Theme"
// @Param limit query int false "1-100, default 50"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /quotes/theme/{theme} [get]
func (h *QuoteHandler) ListByTheme(c *gin.Context) {
	theme, ok := pathParam(c, "theme")
	if !ok {
		return
	}

	var req dto.PaginationRequest
	if !bindQuery(c, &req) {
		return
	}

	quotes, err := h.service.ListByTheme(c.Request.Context(), theme, req.Page())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuotes(quotes))
}

// RegisterQuoteRoutes registers quote routes on the given router group.
// Static segments are registered before /:id so they are never captured as ids.
// The mutating routes run behind the given guards, if any.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup, writeGuards ...gin.HandlerFunc) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.GET("/random", h.GetRandomQuote)
	quotes.GET("/search", h.SearchQuotes)
	quotes.GET("/tags", h.SearchByTags)
	quotes.GET("/theme/:theme", h.ListByTheme)
	quotes.GET("/:id", h.GetQuoteByID)

	writes := quotes.Group("", writeGuards...)
	writes.POST("", h.CreateQuote)
	writes.PUT("/:id", h.UpdateQuote)
	writes.DELETE("/:id", h.DeleteQuote)
}

func sortParams(r dto.SortRequest) app.SortParams {
	return app.SortParams{By: r.SortBy, Order: r.SortOrder}
}

func pathParam(c *gin.Context, name string) (string, bool) {
	value := c.Param(name)
	if value == "" {
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, name+" is required")
		return "", false
	}

	return value, true
}

// bindQuery binds and validates query parameters, writing the 400 response on failure.
func bindQuery(c *gin.Context, v any) bool {
	return respondBindError(c, dto.BindQueryAndValidate(c, v))
}

// bindBody binds and validates a JSON body, writing the 400 response on failure.
func bindBody(c *gin.Context, v any) bool {
	return respondBindError(c, dto.BindAndValidate(c, v))
}

func respondBindError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case dto.IsValidationError(err):
		dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
	default:
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
	}

	return false
}
