package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"absensi/internal/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login checks staff credentials and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username dan password harus diisi."})
		return
	}
	u, sess, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username dan password harus diisi."})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Username atau password salah."})
		return
	case err != nil:
		h.log.Error("login failed", "username", req.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}

	h.setSessionCookie(c, sess.Token, int(h.auth.TTL().Seconds()))
	h.log.Info("staff logged in", "username", u.Username, "role", u.Role)
	c.JSON(http.StatusOK, gin.H{"_id": u.ID, "username": u.Username, "role": u.Role, "token": sess.Token})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logout berhasil."})
}

// Register creates a staff account. Admin only.
func (h *Handler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	u, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"message": "Username sudah digunakan."})
		return
	case err != nil:
		h.log.Error("register staff failed", "username", req.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User berhasil dibuat.", "userId": u.ID})
}

// Me returns the caller's session claims.
func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	c.JSON(http.StatusOK, gin.H{"_id": claims.Subject, "username": claims.Username, "role": claims.Role})
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, value, maxAge, "/", "", h.secureCookie, true)
}
