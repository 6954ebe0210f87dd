package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coursetrack/internal/attendance"
	"coursetrack/internal/auth"
	"coursetrack/internal/catalog"
	"coursetrack/internal/metrics"
	"coursetrack/internal/model"
	"coursetrack/internal/queue"
	"coursetrack/internal/stats"
	"coursetrack/internal/views"
)

// AuthConfig holds the token settings used by the session endpoints.
type AuthConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
}

// TallyReader serves lecture summaries, usually from the cache.
type TallyReader interface {
	LectureTally(ctx context.Context, lectureID string) (stats.Tally, error)
}

type Handler struct {
	catalog    *catalog.Store
	attendance *attendance.Service
	views      *views.Projector
	pub        attendance.Publisher // nil disables lecture events
	tallies    TallyReader
	auth       AuthConfig
	now        func() time.Time
}

func New(cat *catalog.Store, svc *attendance.Service, proj *views.Projector, pub attendance.Publisher, ac AuthConfig, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{catalog: cat, attendance: svc, views: proj, pub: pub, auth: ac, now: now}
}

// WithTallies sets the summary source. Without one summaries are computed
// from the ledger on every request.
func (h *Handler) WithTallies(t TallyReader) *Handler {
	h.tallies = t
	return h
}

// Register mounts the API routes on r. limit runs on every route, after the
// session is resolved so authenticated callers are limited per user.
func (h *Handler) Register(r gin.IRouter, limit ...gin.HandlerFunc) {
	login := make([]gin.HandlerFunc, 0, len(limit)+1)
	login = append(login, limit...)
	r.POST("/v1/sessions", append(login, h.CreateSession)...)

	session := make([]gin.HandlerFunc, 0, len(limit)+1)
	session = append(session, auth.RequireSession(h.auth.SigningKey, h.auth.Issuer))
	v1 := r.Group("/v1", append(session, limit...)...)
	v1.GET("/me/dashboard", h.Dashboard)

	student := v1.Group("/me", auth.RequireRole(model.RoleStudent))
	student.GET("/lectures", h.StudentLectures)
	student.GET("/subjects/:id/attendance", h.SubjectHistory)

	faculty := v1.Group("/lectures", auth.RequireRole(model.RoleFaculty))
	faculty.POST("", h.CreateLecture)
	faculty.GET("/:id/roster", h.Roster)
	faculty.GET("/:id/records.csv", h.RosterCSV)
	faculty.GET("/:id/summary", h.Summary)
	faculty.PUT("/:id/attendance/:studentId", h.MarkStudent)
	faculty.POST("/:id/attendance", h.MarkLecture)
}

// ---------- Sessions ----------

type sessionRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateSession exchanges demo credentials for a bearer token.
func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.catalog.Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	tok, err := auth.Issue(user, h.auth.Issuer, h.auth.SigningKey, h.auth.AccessTTL, h.now())
	if err != nil {
		log.Printf("issue token for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.Unix(),
		"user":         user,
	})
}

// ---------- Dashboards ----------

// Dashboard renders the faculty or student home page for the session user.
func (h *Handler) Dashboard(c *gin.Context) {
	claims, _ := auth.Session(c)
	switch claims.Role {
	case model.RoleFaculty:
		d, err := h.views.FacultyDashboard(c.Request.Context(), claims.UserID())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	case model.RoleStudent:
		d, err := h.views.StudentDashboard(c.Request.Context(), claims.UserID())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "unknown role"})
	}
}

func (h *Handler) StudentLectures(c *gin.Context) {
	claims, _ := auth.Session(c)
	out, err := h.views.StudentLectures(c.Request.Context(), claims.UserID(), c.Query("subject"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SubjectHistory(c *gin.Context) {
	claims, _ := auth.Session(c)
	out, err := h.views.SubjectHistory(c.Request.Context(), claims.UserID(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ---------- Lectures ----------

// CreateLecture schedules a lecture for one of the caller's subjects.
func (h *Handler) CreateLecture(c *gin.Context) {
	var in catalog.LectureInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.Session(c)
	lecture, err := h.catalog.CreateLecture(c.Request.Context(), claims.UserID(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.LecturesScheduled.Inc()

	if h.pub != nil {
		msg := queue.Message{Type: queue.TypeLectureScheduled, LectureID: lecture.ID, At: h.now().UTC()}
		if err := h.pub.Publish(c.Request.Context(), msg); err != nil {
			log.Printf("publish lecture %s: %v", lecture.ID, err)
		}
	}
	c.JSON(http.StatusCreated, lecture)
}

// ownLecture loads the lecture in the path and checks the caller teaches it.
func (h *Handler) ownLecture(c *gin.Context) (model.Lecture, bool) {
	lecture, err := h.catalog.Lecture(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return model.Lecture{}, false
	}
	claims, _ := auth.Session(c)
	if lecture.FacultyID != claims.UserID() {
		c.JSON(http.StatusForbidden, gin.H{"error": "lecture belongs to another faculty member"})
		return model.Lecture{}, false
	}
	return lecture, true
}

func (h *Handler) Roster(c *gin.Context) {
	lecture, ok := h.ownLecture(c)
	if !ok {
		return
	}
	roster, err := h.views.Roster(c.Request.Context(), lecture.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

// RosterCSV downloads the lecture roster as a CSV attachment.
func (h *Handler) RosterCSV(c *gin.Context) {
	lecture, ok := h.ownLecture(c)
	if !ok {
		return
	}
	roster, err := h.views.Roster(c.Request.Context(), lecture.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="lecture-`+lecture.ID+`-attendance.csv"`)
	c.Status(http.StatusOK)
	if err := roster.WriteCSV(c.Writer); err != nil {
		log.Printf("write csv for lecture %s: %v", lecture.ID, err)
	}
}

// Summary returns the present/absent tally of a lecture.
func (h *Handler) Summary(c *gin.Context) {
	lecture, ok := h.ownLecture(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var tally stats.Tally
	if h.tallies != nil {
		var err error
		if tally, err = h.tallies.LectureTally(ctx, lecture.ID); err != nil {
			writeError(c, err)
			return
		}
	} else {
		recs, err := h.attendance.Ledger().ForLecture(ctx, lecture.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		tally = stats.LectureTally(recs, lecture.ID)
	}
	c.JSON(http.StatusOK, gin.H{
		"lecture_id": lecture.ID,
		"summary":    tally,
		"tier":       stats.StatusTier(tally.Percentage),
	})
}

// ---------- Attendance ----------

type markRequest struct {
	Status model.Status `json:"status" binding:"required"`
}

// MarkStudent upserts one student's attendance for a lecture.
func (h *Handler) MarkStudent(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lecture, ok := h.ownLecture(c)
	if !ok {
		return
	}
	claims, _ := auth.Session(c)
	rec, err := h.attendance.UpsertAttendance(c.Request.Context(), lecture.ID, c.Param("studentId"), req.Status, claims.UserID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type batchRequest struct {
	Status model.Status            `json:"status"`
	Marks  map[string]model.Status `json:"marks"`
}

// MarkLecture applies either one status to every enrolled student or an
// explicit per-student map. Each student is saved independently.
func (h *Handler) MarkLecture(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.Status == "") == (len(req.Marks) == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide exactly one of status or marks"})
		return
	}
	verr := &model.ValidationError{}
	if req.Status != "" {
		if _, err := model.ParseStatus(string(req.Status)); err != nil {
			verr.Add("status", "must be present or absent")
		}
	}
	for id, st := range req.Marks {
		if _, err := model.ParseStatus(string(st)); err != nil {
			verr.Add("marks."+id, "must be present or absent")
		}
	}
	if verr.HasErrors() {
		writeError(c, verr)
		return
	}
	lecture, ok := h.ownLecture(c)
	if !ok {
		return
	}
	claims, _ := auth.Session(c)

	var res attendance.BatchResult
	if req.Status != "" {
		var err error
		res, err = h.attendance.MarkAll(c.Request.Context(), lecture.ID, req.Status, claims.UserID())
		if err != nil {
			writeError(c, err)
			return
		}
	} else {
		res = h.attendance.MarkBatch(c.Request.Context(), lecture.ID, req.Marks, claims.UserID())
	}

	failed := make(map[string]string, len(res.Failed))
	for id, err := range res.Failed {
		failed[id] = err.Error()
	}
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"saved": res.Saved, "failed": failed})
}

// ---------- Errors ----------

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotEnrolled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvariant):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(status, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case status == http.StatusInternalServerError:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
