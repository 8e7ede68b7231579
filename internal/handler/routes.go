package handler

import (
	"github.com/gin-gonic/gin"

	"absensi/internal/auth"
)

// Routes bundles the middleware the API routes depend on.
type Routes struct {
	// Session authenticates staff requests.
	Session gin.HandlerFunc
	// Limit throttles public endpoints (tap, login). Optional.
	Limit gin.HandlerFunc
	// Live serves the websocket feed. Optional.
	Live gin.HandlerFunc
}

// Mount registers the API on r.
func (h *Handler) Mount(r gin.IRouter, rt Routes) {
	limit := rt.Limit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api := r.Group("/api")
	api.POST("/attendance/tap", limit, h.Tap)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", limit, h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", rt.Session, h.Me)
	authGroup.POST("/register", rt.Session, auth.RequireRole(auth.RoleAdmin), h.Register)

	staff := api.Group("", rt.Session, auth.RequireRole(auth.RoleAdmin, auth.RoleGuru))
	staff.POST("/attendance/manual", h.ManualEntry)
	staff.GET("/attendance/today", h.Today)
	staff.GET("/attendance/absent", h.Absent)
	staff.GET("/registration-mode", h.RegistrationMode)
	staff.POST("/registration-mode", h.SetRegistrationMode)
	staff.POST("/students", h.CreateStudent)
	staff.GET("/students", h.Students)
	staff.GET("/reports/attendance", h.Report)

	if rt.Live != nil {
		r.GET("/ws", rt.Session, rt.Live)
	}
}
