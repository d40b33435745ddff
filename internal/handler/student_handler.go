package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/service"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
	"github.com/gandhamprakashtech/stumart-api/pkg/response"
)

// StudentHandler exposes signup, verification and admin moderation.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// Register godoc
// @Summary Register with a PIN
// @Description Claim an available PIN and create a pending account
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/register [post]
func (h *StudentHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Verify godoc
// @Summary Verify email
// @Description Activate a pending account with the emailed token
// @Tags Students
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/verify [get]
func (h *StudentHandler) Verify(c *gin.Context) {
	student, err := h.service.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Get godoc
// @Summary Fetch a student profile
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// List godoc
// @Summary List students
// @Description Admin listing with search, status and branch filters
// @Tags Students
// @Produce json
// @Param search query string false "Search name, email or pin"
// @Param status query string false "Account status"
// @Param branch query string false "Branch code"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    c.Query("search"),
		Branch:    c.Query("branch"),
		SortBy:    c.DefaultQuery("sortBy", "created_at"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.StudentStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	students, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Moderate godoc
// @Summary Block or unblock a student
// @Description Moderation also syncs the claimed PIN status
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body handler.moderateStudentRequest true "New status"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/moderate [post]
func (h *StudentHandler) Moderate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req moderateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}

	if err := h.service.Moderate(c.Request.Context(), claims.UserID, c.Param("id"), models.StudentStatus(req.Status)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type moderateStudentRequest struct {
	Status string `json:"status" binding:"required"`
}
