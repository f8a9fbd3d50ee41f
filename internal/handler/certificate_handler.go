package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/internal/service"
	"github.com/noah-isme/academy-admin-api/pkg/response"
)

type certificateService interface {
	Issue(ctx context.Context, actorID string, req service.IssueCertificateRequest) (*models.Certificate, error)
	Get(ctx context.Context, id string) (*models.Certificate, error)
	Verify(ctx context.Context, code string) (*models.CertificateVerification, error)
	Revoke(ctx context.Context, id, actorID string, req service.RevokeCertificateRequest) (*models.RevocationResult, error)
	DownloadLink(ctx context.Context, id string) (*service.DownloadLink, error)
	RenderPDF(ctx context.Context, token string) (*service.CertificateFile, error)
}

// downloadLinkResponse adds the ready-to-use URL to a signed token.
type downloadLinkResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CertificateHandler exposes certificate endpoints.
type CertificateHandler struct {
	certificates certificateService
	downloadBase string
}

// NewCertificateHandler constructs CertificateHandler. downloadBase is the
// public path that serves tokens, e.g. /api/v1/certificates/download.
func NewCertificateHandler(certificates certificateService, downloadBase string) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, downloadBase: strings.TrimRight(downloadBase, "/")}
}

// Issue godoc
// @Summary Issue certificate
// @Description Issues a certificate for a COMPLETED enrollment
// @Tags Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.IssueCertificateRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req service.IssueCertificateRequest
	if !bindJSON(c, &req) {
		return
	}
	cert, err := h.certificates.Issue(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// Get godoc
// @Summary Get certificate detail
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// Verify godoc
// @Summary Verify certificate
// @Description Public lookup of a certificate by its verification code
// @Tags Certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /certificates/verify/{code} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	verification, err := h.certificates.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verification, nil)
}

// Revoke godoc
// @Summary Revoke certificate
// @Description MISUSE_VIOLATION terminates the enrollment and suspends the student; ADMINISTRATIVE_ERROR reopens the enrollment
// @Tags Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Certificate ID"
// @Param payload body service.RevokeCertificateRequest true "Revocation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/revoke [post]
func (h *CertificateHandler) Revoke(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req service.RevokeCertificateRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.certificates.Revoke(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DownloadLink godoc
// @Summary Create certificate download link
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/download-link [get]
func (h *CertificateHandler) DownloadLink(c *gin.Context) {
	link, err := h.certificates.DownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, downloadLinkResponse{
		Token:     link.Token,
		URL:       h.downloadBase + "/" + link.Token,
		ExpiresAt: link.ExpiresAt,
	}, nil)
}

// Download godoc
// @Summary Download certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/download/{token} [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	file, err := h.certificates.RenderPDF(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, "application/pdf", file.Content)
}
