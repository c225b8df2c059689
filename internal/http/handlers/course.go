package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/services"
)

type CourseHandler struct {
	log           *logger.Logger
	courseService services.CourseService
}

func NewCourseHandler(log *logger.Logger, courseService services.CourseService) *CourseHandler {
	return &CourseHandler{log: log.With("handler", "Course"), courseService: courseService}
}

type createCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// POST /api/v1/courses
func (h *CourseHandler) Create(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	course, err := h.courseService.Create(c.Request.Context(), tc, req.Title, req.Description)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

// GET /api/v1/courses
func (h *CourseHandler) List(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courses, err := h.courseService.List(c.Request.Context(), tc)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// GET /api/v1/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	course, err := h.courseService.GetTree(c.Request.Context(), tc, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// GET /api/v1/courses/:id/lessons/:lesson_id
func (h *CourseHandler) GetLesson(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	if _, ok := pathUUID(c, "id"); !ok {
		return
	}
	lessonID, ok := pathUUID(c, "lesson_id")
	if !ok {
		return
	}
	lesson, err := h.courseService.GetLesson(c.Request.Context(), tc, lessonID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// pathUUID parses a UUID path segment, replying 400 on garbage.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_id", "invalid "+name+" path parameter")
		return uuid.Nil, false
	}
	return id, true
}
