package httpapi

import (
	"net/http"
	"strings"

	"nifty-breakout/internal/domain/watchlist"

	"github.com/gin-gonic/gin"
)

type addSymbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Name   string `json:"name"`
}

func (s *Server) handleListWatchlist(c *gin.Context) {
	list, err := s.deps.Watchlist.ListWatchlist(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	out := make([]symbolView, 0, len(list))
	for _, sym := range list {
		out = append(out, toSymbolView(sym))
	}
	writeOK(c, http.StatusOK, gin.H{"watchlist": out})
}

func (s *Server) handleAddSymbol(c *gin.Context) {
	var req addSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, "symbol is required")
		return
	}
	sym := watchlist.Symbol{Symbol: req.Symbol, Name: req.Name}.Normalize()
	if sym.Symbol == "" {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, "symbol is required")
		return
	}
	if err := s.deps.Watchlist.AddSymbol(c.Request.Context(), sym); err != nil {
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	writeOK(c, http.StatusCreated, gin.H{"symbol": sym.Symbol})
}

func (s *Server) handleRemoveSymbol(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if err := s.deps.Watchlist.RemoveSymbol(c.Request.Context(), symbol); err != nil {
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	writeOK(c, http.StatusOK, gin.H{"symbol": symbol})
}
