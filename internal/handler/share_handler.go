package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hspatel/fileshare/internal/pkg/errcode"
	"github.com/hspatel/fileshare/internal/pkg/response"
	"github.com/hspatel/fileshare/internal/service"
)

type ShareHandler struct {
	svc *service.ShareService
}

func NewShareHandler(svc *service.ShareService) *ShareHandler {
	return &ShareHandler{svc: svc}
}

type UploadResponse struct {
	FileID     string   `json:"file_id"`
	FileName   string   `json:"file_name"`
	Recipients []string `json:"recipients"`
	Notified   bool     `json:"notified"`
	Status     string   `json:"status"`
}

type ShareStatusResponse struct {
	FileID      string          `json:"file_id"`
	FileName    string          `json:"file_name"`
	ClickStatus map[string]bool `json:"click_status"`
	UploadedAt  int64           `json:"uploaded_at"`
	Deleted     bool            `json:"deleted"`
}

// Upload accepts a multipart body with one "file" part and the recipient
// addresses in repeated (or comma-separated) "emails" fields.
func (h *ShareHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	emails := splitEmails(c.PostFormArray("emails"))
	if len(emails) == 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "at least one recipient email is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	result, err := h.svc.CreateShare(c.Request.Context(), opened, file.Size, file.Filename, emails)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, UploadResponse{
		FileID:     result.Share.FileID,
		FileName:   result.Share.FileName,
		Recipients: result.Share.Recipients,
		Notified:   result.Notified,
		Status:     "ok",
	})
}

// Download redirects an authorized recipient to a presigned URL.
func (h *ShareHandler) Download(c *gin.Context) {
	fileID := c.Param("file_id")
	email := strings.TrimSpace(c.Query("email"))
	if fileID == "" || email == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "file_id and email are required")
		return
	}
	link, err := h.svc.ResolveDownload(c.Request.Context(), fileID, email)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Redirect(http.StatusFound, link)
}

// Get reports the share's consumption state for the sender.
func (h *ShareHandler) Get(c *gin.Context) {
	share, err := h.svc.GetShare(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ShareStatusResponse{
		FileID:      share.FileID,
		FileName:    share.FileName,
		ClickStatus: share.ClickStatus,
		UploadedAt:  share.UploadedAt,
		Deleted:     share.Deleted,
	})
}

func splitEmails(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		for _, part := range strings.Split(field, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
