package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendmate/internal/apperr"
	"attendmate/internal/attendance"
	"attendmate/internal/auth"
	"attendmate/internal/identity"
	"attendmate/internal/session"
)

// Config carries the handler's token and policy settings.
type Config struct {
	JWTIssuer       string
	JWTSigningKey   string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SessionDuration time.Duration
}

// Handler exposes the attendance service over HTTP.
type Handler struct {
	sessions *session.Manager
	recorder *attendance.Recorder
	users    identity.Repository
	cfg      Config

	// health probes; nil means the dependency is not wired (reported down)
	dbHealthy    func(context.Context) bool
	redisHealthy func(context.Context) bool
}

func New(sessions *session.Manager, recorder *attendance.Recorder, users identity.Repository, cfg Config) *Handler {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = time.Hour
	}
	return &Handler{sessions: sessions, recorder: recorder, users: users, cfg: cfg}
}

// WithHealth wires the readiness probes for /healthz.
func (h *Handler) WithHealth(db, redis func(context.Context) bool) *Handler {
	h.dbHealthy, h.redisHealthy = db, redis
	return h
}

// Routes registers all endpoints on the router.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/v1/auth/token", h.IssueToken)

	authed := r.Group("/v1", auth.Require(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))

	admin := authed.Group("", auth.RequireRole(identity.RoleAdmin))
	admin.POST("/users", h.CreateUser)

	teaching := authed.Group("", auth.RequireRole(identity.RoleTeacher, identity.RoleAdmin))
	teaching.POST("/sessions", h.CreateSession)
	teaching.POST("/sessions/:id/activate", h.ActivateSession)
	teaching.POST("/sessions/:id/end", h.EndSession)
	teaching.GET("/classes/:id/sessions", h.ClassSessions)
	teaching.GET("/attendance/session/:id", h.SessionAttendance)

	authed.GET("/users/:id", h.GetUser)
	authed.GET("/classes/:id/session", h.ActiveSession)
	authed.GET("/attendance/student/:id", h.StudentAttendance)
	authed.GET("/attendance/stats/:id", h.StudentStats)

	students := authed.Group("", auth.RequireRole(identity.RoleStudent))
	students.POST("/checkins", h.CheckIn)
	students.POST("/checkins/:sessionID/checkout", h.CheckOut)
}

// writeError maps error kinds to HTTP statuses. Every response names the
// kind so clients can show the specific remediation.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalid:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState, apperr.KindSessionClosed:
		status = http.StatusConflict
	case apperr.KindOutOfRange:
		status = http.StatusUnprocessableEntity
	case apperr.KindNetwork:
		status = http.StatusBadGateway
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": string(kind)})
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbOK := h.dbHealthy != nil && h.dbHealthy(ctx)
	redisOK := h.redisHealthy != nil && h.redisHealthy(ctx)
	status := http.StatusOK
	if !dbOK || !redisOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbOK, "redis": redisOK})
}

// ---------- Auth ----------

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// IssueToken exchanges a trusted caller identity for a signed token pair.
// The role claim always comes from the users table, never from the request.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(apperr.KindInvalid)})
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !u.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "user is inactive", "kind": string(apperr.KindInvalid)})
		return
	}
	tokens, err := auth.Issue(u, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Users ----------

// CreateUser accepts the external identity provider's profile document and
// maps it into a validated user. Incomplete profiles fail the operation; no
// fallback user is fabricated.
func (h *Handler) CreateUser(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body", "kind": string(apperr.KindInvalid)})
		return
	}
	u, err := identity.DecodeProfile(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	created, err := h.users.Create(c.Request.Context(), u)
	if err != nil {
		writeError(c, err)
		return
	}
	if created.Role == identity.RoleStudent && created.ClassID != "" {
		if err := h.users.EnrollStudent(c.Request.Context(), created.ClassID, created.ID); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetUser(c *gin.Context) {
	caller, _ := auth.Caller(c)
	id := c.Param("id")
	if caller.Role == identity.RoleStudent && caller.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "students may only read themselves", "kind": string(apperr.KindInvalid)})
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// ---------- Sessions ----------

type createSessionRequest struct {
	ClassID         string     `json:"class_id" binding:"required"`
	Lat             float64    `json:"lat" binding:"min=-90,max=90"`
	Long            float64    `json:"long" binding:"min=-180,max=180"`
	RadiusM         float64    `json:"radius_m" binding:"required,gt=0"`
	DurationMinutes int        `json:"duration_minutes"`
	StartsAt        *time.Time `json:"starts_at"`
}

// CreateSession starts a session immediately, or schedules one when
// starts_at is set.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(apperr.KindInvalid)})
		return
	}
	caller, _ := auth.Caller(c)
	fence := session.Geofence{Lat: req.Lat, Long: req.Long, RadiusM: req.RadiusM}
	duration := h.cfg.SessionDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	var (
		s   session.Session
		err error
	)
	if req.StartsAt != nil {
		s, err = h.sessions.Schedule(c.Request.Context(), caller, req.ClassID, fence, *req.StartsAt, duration)
	} else {
		s, err = h.sessions.Start(c.Request.Context(), caller, req.ClassID, fence, duration)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) ActivateSession(c *gin.Context) {
	caller, _ := auth.Caller(c)
	s, err := h.sessions.Activate(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) EndSession(c *gin.Context) {
	caller, _ := auth.Caller(c)
	s, err := h.sessions.End(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) ActiveSession(c *gin.Context) {
	s, err := h.sessions.Active(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) ClassSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.sessions.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ---------- Check-ins ----------

type checkInRequest struct {
	SessionID string     `json:"session_id" binding:"required"`
	Lat       float64    `json:"lat" binding:"min=-90,max=90"`
	Long      float64    `json:"long" binding:"min=-180,max=180"`
	Timestamp *time.Time `json:"timestamp"`
}

// CheckIn records attendance for the authenticated student. The student id
// is always the caller's; a body-supplied id is never trusted.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(apperr.KindInvalid)})
		return
	}
	caller, _ := auth.Caller(c)
	observed := time.Now().UTC()
	if req.Timestamp != nil {
		observed = req.Timestamp.UTC()
	}
	result, err := h.recorder.CheckIn(c.Request.Context(), req.SessionID, caller.ID,
		attendance.Coordinates{Lat: req.Lat, Long: req.Long}, observed)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyRecorded {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *Handler) CheckOut(c *gin.Context) {
	caller, _ := auth.Caller(c)
	rec, err := h.recorder.CheckOut(c.Request.Context(), c.Param("sessionID"), caller.ID, time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ---------- Attendance reads ----------

func (h *Handler) SessionAttendance(c *gin.Context) {
	id := c.Param("id")
	if c.Query("view") == "absent" {
		absent, err := h.recorder.Absentees(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if absent == nil {
			absent = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"absent": absent})
		return
	}
	records, err := h.recorder.SessionRecords(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	caller, _ := auth.Caller(c)
	id := c.Param("id")
	if caller.Role == identity.RoleStudent && caller.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "students may only read their own attendance", "kind": string(apperr.KindInvalid)})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := h.recorder.StudentHistory(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) StudentStats(c *gin.Context) {
	caller, _ := auth.Caller(c)
	id := c.Param("id")
	if caller.Role == identity.RoleStudent && caller.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "students may only read their own stats", "kind": string(apperr.KindInvalid)})
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if u.ClassID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user has no class", "kind": string(apperr.KindInvalid)})
		return
	}
	stats, err := h.recorder.StudentStats(c.Request.Context(), id, u.ClassID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
