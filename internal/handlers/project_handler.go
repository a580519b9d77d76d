package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiko9987/itglobal/internal/compute"
	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/pagination"
	"github.com/kiko9987/itglobal/internal/report"
	"github.com/kiko9987/itglobal/internal/services"
	"github.com/kiko9987/itglobal/internal/store"
)

// ProjectHandler handles project-related requests.
type ProjectHandler struct {
	projectService services.ProjectServicer
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService services.ProjectServicer) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// ProjectRequest represents the payload for creating or updating a project.
// Amounts may be JSON numbers or strings such as "1,500,000". Code is
// ignored on create and must match the path on update.
type ProjectRequest struct {
	Code string `json:"code"`
	compute.Input
}

// ListProjectsQuery holds the optional list filters.
type ListProjectsQuery struct {
	Region string `form:"region" binding:"omitempty,region_code"`
	Owner  string `form:"owner" binding:"max=100"`
	Status string `form:"status" binding:"omitempty,project_status"`
}

func (q ListProjectsQuery) filter() store.Filter {
	return store.Filter{
		Region: q.Region,
		Owner:  strings.TrimSpace(q.Owner),
		Status: models.ProjectStatus(q.Status),
	}
}

// ProjectResult is a stored project with the anomalies found while deriving it.
type ProjectResult struct {
	Project   *models.Project   `json:"project"`
	Anomalies []compute.Anomaly `json:"anomalies,omitempty"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Project *models.Project `json:"project"`
}

// NextCodeResponse is the code the next project in a region would get.
type NextCodeResponse struct {
	Region string `json:"region"`
	Code   string `json:"code"`
}

// CreateProject handles the creation of a new project
// @Summary     Create a project
// @Description Validate the project, derive its financial fields and assign the next code of its region
// @Tags        projects
// @Accept      json
// @Produce     json
// @Param       request body ProjectRequest true "Project details"
// @Success     201 {object} ProjectResult "Project created"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.projectService.CreateProject(c.Request.Context(), req.Input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ProjectResult{Project: res.Project, Anomalies: res.Anomalies})
}

// ListProjects handles listing projects
// @Summary     List projects
// @Description Get a paginated list of projects ordered by code
// @Tags        projects
// @Produce     json
// @Param       region    query string false "Region code"
// @Param       owner     query string false "Owner"
// @Param       status    query string false "Status" Enums(PENDING, IN_PROGRESS, COMPLETE)
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Project] "Paginated projects"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	var query ListProjectsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.projectService.ListProjects(c.Request.Context(), query.filter(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProject handles the retrieval of a single project
// @Summary     Get project by code
// @Tags        projects
// @Produce     json
// @Param       code path string true "Project code"
// @Success     200 {object} ProjectResponse "Project details"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{code} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectService.GetProject(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProjectResponse{Project: project})
}

// UpdateProject handles partial updates of a project
// @Summary     Update a project
// @Description Overlay the supplied fields and recompute every derived field. The code and region cannot change.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Param       code    path string         true "Project code"
// @Param       request body ProjectRequest true "Fields to change"
// @Success     200 {object} ProjectResult "Project updated"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{code} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	code := c.Param("code")

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Code != "" && strings.TrimSpace(req.Code) != code {
		respondWithError(c, apperrors.ErrCodeImmutable)
		return
	}

	res, err := h.projectService.UpdateProject(c.Request.Context(), code, req.Input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProjectResult{Project: res.Project, Anomalies: res.Anomalies})
}

// DeleteProject handles project deletion
// @Summary     Delete a project
// @Description Delete a project. Its code is never issued again.
// @Tags        projects
// @Produce     json
// @Param       code path string true "Project code"
// @Success     200 {object} MessageResponse "Project deleted"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{code} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	if err := h.projectService.DeleteProject(c.Request.Context(), c.Param("code")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Project deleted successfully"})
}

// PreviewCode handles the next-code preview
// @Summary     Preview the next project code
// @Description Return the code the next project in a region would receive, without allocating it
// @Tags        projects
// @Produce     json
// @Param       region query string true "Region code"
// @Success     200 {object} NextCodeResponse "Next code"
// @Failure     400 {object} ErrorResponse "Unknown region"
// @Router      /projects/next-code [get]
func (h *ProjectHandler) PreviewCode(c *gin.Context) {
	region := c.Query("region")
	code, err := h.projectService.PreviewCode(c.Request.Context(), region)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, NextCodeResponse{Region: strings.ToUpper(strings.TrimSpace(region)), Code: code})
}

// ExportProjects downloads the matching projects as a workbook
// @Summary     Export projects
// @Description Download every matching project as an xlsx sheet in the business column layout
// @Tags        projects
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param       region query string false "Region code"
// @Param       owner  query string false "Owner"
// @Param       status query string false "Status" Enums(PENDING, IN_PROGRESS, COMPLETE)
// @Success     200 {file} file "Workbook"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /projects/export [get]
func (h *ProjectHandler) ExportProjects(c *gin.Context) {
	var query ListProjectsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	projects, err := h.projectService.ExportProjects(c.Request.Context(), query.filter())
	if err != nil {
		respondWithError(c, err)
		return
	}

	f, err := report.ExportProjects(projects)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	filename := fmt.Sprintf("projects-%s.xlsx", time.Now().Format("20060102-1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
