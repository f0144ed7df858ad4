package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

type documentService interface {
	IssueUploadURL(req dto.UploadURLRequest, claims *models.PortalClaims) (*dto.UploadURLResponse, error)
	Upload(token string, body io.Reader, claims *models.PortalClaims) (int64, error)
	Register(ctx context.Context, req dto.RegisterDocumentRequest, claims *models.PortalClaims) (*models.Document, error)
	List(ctx context.Context, filter repository.DocumentFilter, claims *models.PortalClaims) ([]models.Document, error)
	Open(key string, claims *models.PortalClaims) (*os.File, error)
}

// DocumentHandler serves the signed upload handshake.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// UploadURL godoc
// @Summary Reserve a signed upload slot
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.UploadURLRequest true "File"
// @Success 201 {object} response.Envelope
// @Router /documents/upload-url [post]
func (h *DocumentHandler) UploadURL(c *gin.Context) {
	var req dto.UploadURLRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	slot, err := h.service.IssueUploadURL(req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Upload godoc
// @Summary Upload file bytes to a signed slot
// @Tags Documents
// @Accept octet-stream
// @Param token path string true "Upload token"
// @Success 200 {object} response.Envelope
// @Router /documents/upload/{token} [put]
func (h *DocumentHandler) Upload(c *gin.Context) {
	n, err := h.service.Upload(c.Param("token"), c.Request.Body, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"bytes": n}, nil)
}

// Register godoc
// @Summary Register an uploaded document
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.RegisterDocumentRequest true "Document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Register(c *gin.Context) {
	var req dto.RegisterDocumentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.Register(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param studentId query string false "Student ID (staff only)"
// @Param clientId query string false "Client ID"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	filter := repository.DocumentFilter{StudentID: c.Query("studentId"), ClientID: c.Query("clientId")}
	docs, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Download godoc
// @Summary Download a stored document
// @Tags Documents
// @Produce octet-stream
// @Param key path string true "Object key"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /documents/files/{key} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Param("key"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, path.Base(info.Name()), info.ModTime(), file)
}
