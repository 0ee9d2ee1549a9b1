package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripdesk/tripdesk/internal/api/middleware"
	"github.com/tripdesk/tripdesk/internal/core/gateway"
)

type GatewayHandler struct {
	service *gateway.Service
}

func NewGatewayHandler(service *gateway.Service) *GatewayHandler {
	return &GatewayHandler{service: service}
}

func (h *GatewayHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), buildRequest(c, false))
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Total != nil {
		c.JSON(http.StatusOK, gin.H{"data": result.Data, "total": *result.Total})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result.Data})
}

func (h *GatewayHandler) Get(c *gin.Context) {
	rec, err := h.service.Read(c.Request.Context(), buildRequest(c, false))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *GatewayHandler) Create(c *gin.Context) {
	rec, err := h.service.Create(c.Request.Context(), buildRequest(c, true))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *GatewayHandler) Update(c *gin.Context) {
	rec, err := h.service.Update(c.Request.Context(), buildRequest(c, true))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *GatewayHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), buildRequest(c, true)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func buildRequest(c *gin.Context, withBody bool) gateway.Request {
	req := gateway.Request{
		RawType:  c.Param("type"),
		PathID:   c.Param("id"),
		Query:    queryGetter(c),
		ActorID:  middleware.GetActorID(c),
		AgencyID: middleware.GetAgencyID(c),
	}
	if withBody {
		// A malformed body decodes to nil; the service rejects it where
		// a payload is required.
		var body interface{}
		if err := c.ShouldBindJSON(&body); err == nil {
			req.Body = body
		}
	}
	return req
}

func queryGetter(c *gin.Context) func(key string) (string, bool) {
	values := c.Request.URL.Query()
	return func(key string) (string, bool) {
		if _, ok := values[key]; !ok {
			return "", false
		}
		return values.Get(key), true
	}
}

func respondError(c *gin.Context, err error) {
	status, body := middleware.ShapeError(err)
	c.JSON(status, body)
}
