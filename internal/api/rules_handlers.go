package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/autogram/autogram/internal/rules"
)

func (s *Server) listRules(c echo.Context) error {
	filter := rules.ListFilter(c.QueryParam("filter"))
	switch filter {
	case rules.ListActive, rules.ListInactive:
	default:
		filter = rules.ListAll
	}

	list := s.rules.List(filter, c.QueryParam("account"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rules": list,
		"count": len(list),
	})
}

func (s *Server) createRule(c echo.Context) error {
	var rule rules.Rule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	created, err := s.rules.Create(rule)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) getRule(c echo.Context) error {
	rule, err := s.rules.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Rule not found")
	}
	return c.JSON(http.StatusOK, rule)
}

func (s *Server) updateRule(c echo.Context) error {
	var update rules.Update
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	rule, err := s.rules.Apply(c.Param("id"), update)
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Rule not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rule)
}

func (s *Server) toggleRule(c echo.Context) error {
	var body struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	rule, err := s.rules.SetActive(c.Param("id"), body.IsActive)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Rule not found")
	}
	return c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c echo.Context) error {
	deleted, err := s.rules.Delete(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Rule not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Rule deleted successfully",
		"deleted_rule": deleted,
	})
}

func (s *Server) bulkDeleteRules(c echo.Context) error {
	var ids []string
	if err := c.Bind(&ids); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	result := s.rules.BulkDelete(ids)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getRulesSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, s.rules.Summary())
}
