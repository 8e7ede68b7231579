// Package handler exposes the attendance engine and staff accounts over
// HTTP.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"absensi/internal/attendance"
	"absensi/internal/auth"
	"absensi/internal/logging"
	"absensi/internal/photo"
	"absensi/internal/report"
)

// Handler serves the JSON API.
type Handler struct {
	engine       *attendance.Engine
	auth         *auth.Service
	log          logging.Logger
	secureCookie bool
}

// New creates a Handler. secureCookie marks the session cookie Secure.
func New(engine *attendance.Engine, authSvc *auth.Service, log logging.Logger, secureCookie bool) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{engine: engine, auth: authSvc, log: log, secureCookie: secureCookie}
}

type tapRequest struct {
	UID       string `json:"uid"`
	ImageData string `json:"image_data"`
}

// Tap handles a card reader tap.
func (h *Handler) Tap(c *gin.Context) {
	var req tapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.UID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "UID is required"})
		return
	}

	image, err := photo.Decode(req.ImageData)
	if err != nil {
		// attendance still counts without the snapshot
		h.log.Warn("ignoring tap image", "uid", req.UID, "err", err)
	}

	out, err := h.engine.HandleTap(c.Request.Context(), req.UID, image)
	if err != nil {
		h.fail(c, "tap", err)
		return
	}
	switch out.Result {
	case attendance.TapRecorded:
		c.JSON(http.StatusOK, gin.H{"message": "Hadir, " + out.Student.Name, "data": out.Record})
	case attendance.TapPromptedForRegistration:
		c.JSON(http.StatusOK, gin.H{"message": "Registration prompt sent"})
	case attendance.TapUnknownHardwareID:
		c.JSON(http.StatusNotFound, gin.H{"message": "Siswa tidak terdaftar"})
	case attendance.TapAlreadyMarked:
		c.JSON(http.StatusConflict, gin.H{"message": "Sudah absen: " + string(out.Existing), "status": out.Existing})
	}
}

type manualRequest struct {
	StudentID  string `json:"studentId" binding:"required"`
	Date       string `json:"date" binding:"required"`
	Status     string `json:"status" binding:"required"`
	Keterangan string `json:"keterangan"`
}

// ManualEntry sets a student's status for a date.
func (h *Handler) ManualEntry(c *gin.Context) {
	var req manualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "studentId, date and status are required"})
		return
	}
	out, err := h.engine.HandleManualEntry(c.Request.Context(), attendance.ManualEntry{
		StudentID: req.StudentID,
		Date:      req.Date,
		Status:    attendance.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
		Remark:    req.Keterangan,
	})
	if err != nil {
		h.fail(c, "manual entry", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out.Record})
}

// Today returns the dashboard's initial state.
func (h *Handler) Today(c *gin.Context) {
	board, err := h.engine.TodayBoard(c.Request.Context())
	if err != nil {
		h.fail(c, "today board", err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// Absent lists students without a record today.
func (h *Handler) Absent(c *gin.Context) {
	students, err := h.engine.ListAbsentToday(c.Request.Context())
	if err != nil {
		h.fail(c, "absent list", err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// RegistrationMode reports the current mode.
func (h *Handler) RegistrationMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isRegistrationMode": h.engine.RegistrationMode()})
}

type modeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetRegistrationMode toggles registration mode.
func (h *Handler) SetRegistrationMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "enabled must be true or false"})
		return
	}
	h.engine.SetRegistrationMode(*req.Enabled)
	msg := "Mode registrasi dinonaktifkan"
	if *req.Enabled {
		msg = "Mode registrasi diaktifkan"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "isRegistrationMode": *req.Enabled})
}

type studentRequest struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Gender    string `json:"gender"`
}

// CreateStudent registers a student.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}
	st, err := h.engine.RegisterStudent(c.Request.Context(), attendance.NewStudent{
		UID:       req.UID,
		StudentID: req.StudentID,
		Name:      req.Name,
		Gender:    attendance.Gender(strings.TrimSpace(req.Gender)),
	})
	if err != nil {
		h.fail(c, "register student", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": st})
}

// Students lists all students by name.
func (h *Handler) Students(c *gin.Context) {
	students, err := h.engine.ListStudents(c.Request.Context())
	if err != nil {
		h.fail(c, "list students", err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// Report exports the records between start and end inclusive as xlsx, or
// JSON when format=json.
func (h *Handler) Report(c *gin.Context) {
	cal := h.engine.Calendar()
	today := h.engine.Today().Key()
	start := c.DefaultQuery("start", today)
	end := c.DefaultQuery("end", start)

	w, err := cal.Range(start, end)
	if err != nil {
		h.fail(c, "report range", err)
		return
	}
	records, err := h.engine.Report(c.Request.Context(), w)
	if err != nil {
		h.fail(c, "report", err)
		return
	}
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{"start": w.Key(), "end": end, "records": records})
		return
	}

	name := fmt.Sprintf("absensi_%s_%s.xlsx", w.Key(), strings.TrimSpace(end))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if err := report.WriteXLSX(c.Writer, records, cal); err != nil {
		h.log.Error("write report failed", "err", err)
	}
}

// fail maps domain errors to responses.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case attendance.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, attendance.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Siswa tidak ditemukan."})
	case errors.Is(err, attendance.ErrDuplicateStudent):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "UID atau ID Siswa sudah terdaftar."})
	default:
		h.log.Error(op+" failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
	}
}
