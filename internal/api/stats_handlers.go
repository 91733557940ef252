package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// getStatistics returns the dashboard statistics. The dashboard must stay
// usable even with partial data issues, so this endpoint always answers 200
// with a well-formed (possibly zeroed) body.
func (s *Server) getStatistics(c echo.Context) error {
	stats := s.service.Statistics()
	log.Debug().Msg("Retrieved dashboard statistics")
	return c.JSON(http.StatusOK, stats)
}

// getDailyStats returns the per-day time series for charts.
func (s *Server) getDailyStats(c echo.Context) error {
	days := 7
	if v, err := strconv.Atoi(c.QueryParam("days")); err == nil {
		days = v
	}

	series := s.service.DailyStats(days)
	log.Debug().Int("days", series.Days).Msg("Retrieved daily statistics")
	return c.JSON(http.StatusOK, series)
}

// getRuleStats returns statistics grouped by rule.
func (s *Server) getRuleStats(c echo.Context) error {
	rollup := s.service.RuleStats()
	log.Debug().Int("rules", rollup.TotalRules).Msg("Retrieved rule statistics")
	return c.JSON(http.StatusOK, rollup)
}
