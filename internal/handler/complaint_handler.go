package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
	"github.com/noah-isme/civic-complaints-api/pkg/response"
)

const maxLocationResults = 1000

type complaintService interface {
	Create(ctx context.Context, actor service.Actor, req service.CreateComplaintRequest, files []*multipart.FileHeader) (*models.Complaint, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Complaint, error)
	List(ctx context.Context, actor service.Actor, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error)
	Locations(ctx context.Context, q models.LocationQuery) ([]models.ComplaintLocation, error)
	Assign(ctx context.Context, actor service.Actor, id string, req service.AssignRequest) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, actor service.Actor, id string, req service.UpdateStatusRequest) (*models.Complaint, error)
	Resolve(ctx context.Context, actor service.Actor, id string, details string, files []*multipart.FileHeader) (*models.Complaint, error)
	SubmitFeedback(ctx context.Context, actor service.Actor, id string, req service.FeedbackRequest) (*models.Complaint, error)
}

// ComplaintHandler exposes the complaint lifecycle.
type ComplaintHandler struct {
	service complaintService
}

// NewComplaintHandler constructs the handler.
func NewComplaintHandler(svc complaintService) *ComplaintHandler {
	return &ComplaintHandler{service: svc}
}

// Create godoc
// @Summary File a complaint
// @Description Category and priority are optional and proposed by the assistant when omitted
// @Tags Complaints
// @Accept mpfd,json
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param category formData string false "Category"
// @Param priority formData string false "Priority"
// @Param latitude formData number false "Latitude"
// @Param longitude formData number false "Longitude"
// @Param address formData string false "Address"
// @Param attachments formData file false "Up to five images or videos"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateComplaintRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}
	files, err := formFiles(c, "attachments")
	if err != nil {
		response.Error(c, err)
		return
	}

	complaint, err := h.service.Create(c.Request.Context(), actor, req, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// List godoc
// @Summary List complaints
// @Description Citizens see their own complaints, staff see those assigned to them
// @Tags Complaints
// @Produce json
// @Param status query string false "Status"
// @Param category query string false "Category"
// @Param priority query string false "Priority"
// @Param department_id query string false "Department"
// @Param user_id query string false "Owner (admin only)"
// @Param staff_id query string false "Assigned staff (admin only)"
// @Param search query string false "Search title and description"
// @Param sort query string false "Sort field, prefix with - for descending"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.ComplaintFilter{
		Status:       models.ComplaintStatus(c.Query("status")),
		Category:     models.ComplaintCategory(c.Query("category")),
		Priority:     models.ComplaintPriority(c.Query("priority")),
		DepartmentID: c.Query("department_id"),
		UserID:       c.Query("user_id"),
		StaffID:      c.Query("staff_id"),
		Search:       strings.TrimSpace(c.Query("search")),
		Sort:         c.Query("sort"),
		Page:         page,
		PageSize:     size,
	}

	items, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Locations godoc
// @Summary Complaint map markers
// @Tags Complaints
// @Produce json
// @Param lat query number false "Latitude"
// @Param lng query number false "Longitude"
// @Param radius query number false "Radius in meters"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints/location [get]
func (h *ComplaintHandler) Locations(c *gin.Context) {
	lat, err := queryFloat(c, "lat")
	if err != nil {
		response.Error(c, err)
		return
	}
	lng, err := queryFloat(c, "lng")
	if err != nil {
		response.Error(c, err)
		return
	}
	radius, err := queryFloat(c, "radius")
	if err != nil {
		response.Error(c, err)
		return
	}
	if (lat == nil) != (lng == nil) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lat and lng must be provided together"))
		return
	}

	q := models.LocationQuery{Latitude: lat, Longitude: lng, Limit: maxLocationResults}
	if radius != nil {
		q.RadiusM = *radius
	}
	items, err := h.service.Locations(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get complaint
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	complaint, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// UpdateStatus godoc
// @Summary Change complaint status
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body service.UpdateStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints/{id}/status [put]
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	complaint, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// assignPayload accepts both the snake_case and camelCase field names
// clients send for an assignment.
type assignPayload struct {
	DepartmentID      string `json:"department_id"`
	StaffID           string `json:"staff_id"`
	DepartmentIDCamel string `json:"departmentId"`
	StaffIDCamel      string `json:"staffId"`
}

func (p assignPayload) request() service.AssignRequest {
	req := service.AssignRequest{DepartmentID: p.DepartmentID, StaffID: p.StaffID}
	if req.DepartmentID == "" {
		req.DepartmentID = p.DepartmentIDCamel
	}
	if req.StaffID == "" {
		req.StaffID = p.StaffIDCamel
	}
	return req
}

// Assign godoc
// @Summary Assign complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body service.AssignRequest true "Department and/or staff"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints/{id}/assign [put]
func (h *ComplaintHandler) Assign(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload assignPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	complaint, err := h.service.Assign(c.Request.Context(), actor, c.Param("id"), payload.request())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Resolve godoc
// @Summary Resolve complaint
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Param id path string true "Complaint ID"
// @Param resolution_details formData string true "What was done"
// @Param images formData file true "Up to five evidence images"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints/{id}/resolve [put]
func (h *ComplaintHandler) Resolve(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	details := c.PostForm("resolution_details")
	if details == "" {
		details = c.PostForm("resolutionDetails")
	}
	files, err := formFiles(c, "images")
	if err != nil {
		response.Error(c, err)
		return
	}
	complaint, err := h.service.Resolve(c.Request.Context(), actor, c.Param("id"), details, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Feedback godoc
// @Summary Rate a resolved complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body service.FeedbackRequest true "Rating 1-5"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /complaints/{id}/feedback [post]
func (h *ComplaintHandler) Feedback(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}
	complaint, err := h.service.SubmitFeedback(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}
