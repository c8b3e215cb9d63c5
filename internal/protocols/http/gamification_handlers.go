package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tila/pkg/logger"
	"tila/pkg/models"
)

// respondError writes the failure envelope for err. Store failures are
// logged with the request id; callers only see the generic text.
func respondError(c *gin.Context, err error) {
	status := models.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithRequestID(c.Request.Context()).WithError(err).Error("request failed")
	}
	c.JSON(status, models.Failure(models.PublicMessage(err)))
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.Failure("invalid request body: "+err.Error()))
}

// mustUserID reads the authenticated user. AuthMiddleware guarantees it.
func mustUserID(c *gin.Context) string {
	userID, _ := GetUserID(c)
	return userID
}

// listBadges returns the catalog in display order
func (s *Server) listBadges(c *gin.Context) {
	c.JSON(http.StatusOK, models.Success(s.gamification.Catalog(), ""))
}

// registerUser creates the caller's stats row; repeated calls return the existing row
func (s *Server) registerUser(c *gin.Context) {
	stats, err := s.gamification.RegisterUser(c.Request.Context(), mustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(stats, "user registered"))
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.gamification.GetStats(c.Request.Context(), mustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(stats, ""))
}

func (s *Server) recordItemCreated(c *gin.Context) {
	var req models.ItemCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item := &models.Item{
		ID:         strings.TrimSpace(req.ID),
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Difficulty: models.ParseDifficulty(req.Difficulty),
	}
	result, err := s.gamification.RecordItemCreated(c.Request.Context(), mustUserID(c), item)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.Success(result, result.Badges.Message()))
}

func (s *Server) recordCompletion(c *gin.Context) {
	var req models.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := s.gamification.RecordCompletion(c.Request.Context(), mustUserID(c), models.ParseDifficulty(req.Difficulty))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(result, result.Badges.Message()))
}

func (s *Server) recordTodoCompleted(c *gin.Context) {
	result, err := s.gamification.RecordTodoCompleted(c.Request.Context(), mustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(result, result.Badges.Message()))
}

func (s *Server) evaluateBadges(c *gin.Context) {
	result, err := s.gamification.EvaluateBadges(c.Request.Context(), mustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(result, result.Message()))
}

func (s *Server) getBadgeProgress(c *gin.Context) {
	s.writeBadgeProgress(c, mustUserID(c))
}

func (s *Server) getUserBadgeProgress(c *gin.Context) {
	s.writeBadgeProgress(c, c.Param("user_id"))
}

func (s *Server) writeBadgeProgress(c *gin.Context, userID string) {
	progress, err := s.gamification.GetBadgeProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(progress, ""))
}

// getDailyActivity returns the rollup for the last ?days days (default 30, max 366)
func (s *Server) getDailyActivity(c *gin.Context) {
	days := 0
	if d := c.Query("days"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v <= 0 || v > 366 {
			c.JSON(http.StatusBadRequest, models.Failure("days must be between 1 and 366"))
			return
		}
		days = v
	} else if s.config.Gamification.ActivityDays > 0 {
		days = s.config.Gamification.ActivityDays
	}

	activity, err := s.gamification.GetDailyActivity(c.Request.Context(), mustUserID(c), days)
	if err != nil {
		respondError(c, err)
		return
	}
	if activity == nil {
		activity = []models.DailyActivity{}
	}
	c.JSON(http.StatusOK, models.Success(activity, ""))
}

type awardPointsRequest struct {
	Points int `json:"points" binding:"required,gt=0"`
}

func (s *Server) awardPoints(c *gin.Context) {
	var req awardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	stats, err := s.gamification.AwardPoints(c.Request.Context(), c.Param("user_id"), req.Points)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(stats, "points awarded"))
}

func (s *Server) rescanBadges(c *gin.Context) {
	if s.rescanner == nil {
		c.JSON(http.StatusServiceUnavailable, models.Failure("rescan is not available"))
		return
	}

	report, err := s.rescanner.RunNow()
	if err != nil {
		respondError(c, err)
		return
	}

	principal, _ := GetPrincipal(c)
	logger.WithRequestID(c.Request.Context()).Info("badge rescan triggered by " + principal.UserID)
	c.JSON(http.StatusOK, models.Success(report, "rescan complete"))
}
