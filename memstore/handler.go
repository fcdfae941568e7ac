package memstore

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/etnz/discipline"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Handler serves s with the backend routes.
func (s *Store) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logRequests)

	r.GET("/stocks", s.listStocks)
	r.POST("/stocks", s.createStock)
	r.GET("/stocks/prices", s.listPrices)
	r.GET("/stocks/validate/:ticker", s.validateTicker)
	r.PATCH("/stocks/:id", s.updateStock)
	r.DELETE("/stocks/:id", s.archiveStock)
	r.GET("/stocks/:id/rule-plans", s.listRulePlans)
	r.POST("/stocks/:id/rule-plans/raw", s.createRulePlan)
	return r
}

func logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	log.Debug().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Str("request_id", c.GetHeader("X-Request-Id")).
		Dur("elapsed", time.Since(start)).
		Msg("memstore")
}

// fail writes err with the status code of its kind, as {"detail": "..."}.
func fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrInvalid):
		code = http.StatusUnprocessableEntity
	}
	c.AbortWithStatusJSON(code, gin.H{"detail": err.Error()})
}

// stockID reads the :id parameter.
func stockID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid stock id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return id, true
}

func (s *Store) listStocks(c *gin.Context) {
	stocks, err := s.ListStocks(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

func (s *Store) listPrices(c *gin.Context) {
	prices, err := s.ListStockPrices(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (s *Store) createStock(c *gin.Context) {
	var req discipline.StockCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	st, err := s.CreateStock(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Store) updateStock(c *gin.Context) {
	id, ok := stockID(c)
	if !ok {
		return
	}
	var req discipline.StockUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	st, err := s.UpdateStock(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Store) archiveStock(c *gin.Context) {
	id, ok := stockID(c)
	if !ok {
		return
	}
	st, err := s.ArchiveStock(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Store) validateTicker(c *gin.Context) {
	market := c.DefaultQuery("market", discipline.MarketUS)
	v, err := s.ValidateTicker(c.Request.Context(), c.Param("ticker"), market)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Store) listRulePlans(c *gin.Context) {
	id, ok := stockID(c)
	if !ok {
		return
	}
	plans, err := s.ListRulePlans(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// createRulePlan stores the request body as the rules of a new version.
func (s *Store) createRulePlan(c *gin.Context) {
	id, ok := stockID(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	p, err := s.CreateRulePlanVersion(c.Request.Context(), id, body, c.Query("notes"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}
