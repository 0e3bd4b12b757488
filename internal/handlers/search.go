package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/soft-connect/server/internal/service/search"
	"github.com/soft-connect/server/internal/util"
)

type SearchHandler struct {
	Search *search.Service
}

func (h *SearchHandler) SearchPosts(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "El parámetro q es requerido")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, posts, err := h.Search.Search(c.Request().Context(), q, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "posts": posts})
}
