package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/autogram/autogram/internal/activity"
)

func queryParamsFrom(c echo.Context, defaultSort string) activity.QueryParams {
	p := activity.QueryParams{
		Skip:         0,
		Limit:        20,
		DateFilter:   activity.DateAll,
		StatusFilter: activity.StatusAll,
		SortBy:       defaultSort,
		SortOrder:    activity.SortDesc,
	}

	if v, err := strconv.Atoi(c.QueryParam("skip")); err == nil && v >= 0 {
		p.Skip = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if v := c.QueryParam("date_filter"); v != "" {
		p.DateFilter = activity.DateFilter(v)
	}
	if v := c.QueryParam("status_filter"); v != "" {
		p.StatusFilter = activity.StatusFilter(v)
	}
	p.Search = c.QueryParam("search")
	p.Account = c.QueryParam("account")
	p.RuleID = c.QueryParam("rule_id")
	if v := c.QueryParam("sort_by"); v != "" {
		p.SortBy = v
	}
	if v := c.QueryParam("sort_order"); v == string(activity.SortAsc) {
		p.SortOrder = activity.SortAsc
	}

	return p
}

// getCommentLogs returns comment activity with filtering, sorting, and
// pagination.
func (s *Server) getCommentLogs(c echo.Context) error {
	page := s.service.QueryComments(queryParamsFrom(c, "timestamp"))
	log.Debug().Int("returned", len(page.Comments)).Int("total", page.Total).Msg("Retrieved comment logs")
	return c.JSON(http.StatusOK, page)
}

// getDMLogs returns DM activity with filtering, sorting, and pagination.
func (s *Server) getDMLogs(c echo.Context) error {
	page := s.service.QueryDMs(queryParamsFrom(c, "sent_at"))
	log.Debug().Int("returned", len(page.DMs)).Int("total", page.Total).Msg("Retrieved DM logs")
	return c.JSON(http.StatusOK, page)
}

// createCommentLog records a comment reply attempt (called by the
// automation pipeline).
func (s *Server) createCommentLog(c echo.Context) error {
	var event activity.CommentEvent
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	id, err := s.store.InsertComment(event)
	if err != nil {
		var verr *activity.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": verr.Error(),
				"field": verr.Field,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event.ID = id
	ctx := c.Request().Context()
	if s.archiver != nil {
		s.archiver.ArchiveComment(ctx, event)
	}
	if s.notifier != nil && event.Failed() {
		s.notifier.NotifyCommentFailure(ctx, event)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Comment log created",
		"id":      id,
	})
}

// createDMLog records a direct message send attempt.
func (s *Server) createDMLog(c echo.Context) error {
	var event activity.DMEvent
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	id, err := s.store.InsertDM(event)
	if err != nil {
		var verr *activity.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": verr.Error(),
				"field": verr.Field,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event.ID = id
	ctx := c.Request().Context()
	if s.archiver != nil {
		s.archiver.ArchiveDM(ctx, event)
	}
	if s.notifier != nil && event.Status == activity.DMFailed {
		s.notifier.NotifyDMFailure(ctx, event)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "DM log created",
		"id":      id,
	})
}

func (s *Server) deleteCommentLog(c echo.Context) error {
	id := c.Param("id")
	if !s.store.DeleteComment(id) {
		return echo.NewHTTPError(http.StatusNotFound, "Comment log not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Comment log deleted"})
}

func (s *Server) deleteDMLog(c echo.Context) error {
	id := c.Param("id")
	if !s.store.DeleteDM(id) {
		return echo.NewHTTPError(http.StatusNotFound, "DM log not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "DM log deleted"})
}

// clearLogs empties one or both collections. Use with caution.
func (s *Server) clearLogs(c echo.Context) error {
	scope := activity.ClearScope(c.QueryParam("log_type"))
	switch scope {
	case activity.ClearComments, activity.ClearDMs, activity.ClearAll:
	case "":
		scope = activity.ClearAll
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "log_type must be comments, dms, or all")
	}

	s.store.Clear(scope)
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Cleared " + string(scope) + " logs successfully",
	})
}
