// Package web exposes the engine over a local HTTP API.
package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tempo/internal/logging"
	"tempo/internal/session"
	"tempo/internal/sync"
	"tempo/internal/tasks"
)

// Server wraps the engine with a gin router.
type Server struct {
	engine *sync.Engine
	router *gin.Engine
}

// NewServer builds the router over an engine.
func NewServer(e *sync.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: e, router: gin.New()}
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	logging.Web("listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api")
	{
		api.GET("/sessions", s.listSessions)
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/active", s.activeSession)
		api.PUT("/sessions/active", s.setActiveSession)
		api.GET("/sessions/:id/messages", s.listMessages)
		api.POST("/sessions/:id/messages", s.appendMessage)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.DELETE("/sessions/:id/messages", s.clearHistory)

		api.GET("/tasks", s.listTasks)
		api.GET("/tasks/stats", s.taskStats)
		api.POST("/tasks/plan", s.acceptPlan)
		api.POST("/tasks/:group/items/:item/toggle", s.toggleItem)
		api.POST("/tasks/:group/submit", s.submitGroup)

		api.GET("/points", s.points)
		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.putProfile)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.engine.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "remote": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listSessions(c *gin.Context) {
	if q := c.Query("q"); q != "" {
		c.JSON(http.StatusOK, s.engine.SearchSessions(q))
		return
	}
	c.JSON(http.StatusOK, s.engine.ListSessions())
}

type createSessionRequest struct {
	Seed string `json:"seed"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := s.engine.CreateSession(req.Seed)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) activeSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": s.engine.ActiveSessionID()})
}

type setActiveRequest struct {
	ID string `json:"id" binding:"required"`
}

func (s *Server) setActiveSession(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.SetActiveSession(req.ID)
	c.JSON(http.StatusOK, gin.H{"id": s.engine.ActiveSessionID()})
}

func (s *Server) listMessages(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	msgs := s.engine.MessagesOf(c.Param("id"), limit)
	c.JSON(http.StatusOK, msgs)
}

type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content" binding:"required"`
}

func (s *Server) appendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := session.Role(req.Role)
	if role != session.RoleAssistant {
		role = session.RoleUser
	}
	msg := s.engine.AppendMessage(c.Param("id"), role, req.Content)
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) deleteSession(c *gin.Context) {
	s.engine.DeleteSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) clearHistory(c *gin.Context) {
	s.engine.ClearSessionHistory(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.TaskGroups())
}

func (s *Server) taskStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.TaskStats())
}

type acceptPlanRequest struct {
	Groups []planGroup `json:"groups" binding:"required"`
}

type planGroup struct {
	Title string     `json:"title"`
	Items []planItem `json:"items"`
}

type planItem struct {
	Text             string `json:"text"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Energy           string `json:"energy"`
}

func (s *Server) acceptPlan(c *gin.Context) {
	var req acceptPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candidates := make([]tasks.Group, 0, len(req.Groups))
	for _, g := range req.Groups {
		cand := tasks.Group{Title: g.Title}
		for _, it := range g.Items {
			cand.Items = append(cand.Items, tasks.Item{
				Text:             it.Text,
				EstimatedMinutes: it.EstimatedMinutes,
				Level:            tasks.EnergyToLevel(it.Energy),
			})
		}
		candidates = append(candidates, cand)
	}
	c.JSON(http.StatusCreated, s.engine.AcceptPlan(candidates))
}

func (s *Server) toggleItem(c *gin.Context) {
	if !s.engine.ToggleTaskItem(c.Param("group"), c.Param("item")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown group or item"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) submitGroup(c *gin.Context) {
	points, ok := s.engine.SubmitTaskGroup(c.Param("group"))
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "group not ready for submission"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points, "total": s.engine.RewardPoints()})
}

func (s *Server) points(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"points": s.engine.RewardPoints()})
}

func (s *Server) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Profile())
}

func (s *Server) putProfile(c *gin.Context) {
	var p sync.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.UpdateProfile(p)
	c.JSON(http.StatusOK, s.engine.Profile())
}
