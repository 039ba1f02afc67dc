package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ytqueue/config"
	"ytqueue/job"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	mgr *job.Manager
	cfg *config.Config
}

func NewHandler(mgr *job.Manager, cfg *config.Config) *Handler {
	return &Handler{mgr: mgr, cfg: cfg}
}

type DownloadRequest struct {
	URL string `json:"url" binding:"required"`
}

// JobView is a job joined with its queue outlook. The estimate fields are
// null for anything not pending.
type JobView struct {
	*job.Job
	QueuePosition        *int `json:"queuePosition,omitempty"`
	EstimatedWaitSeconds *int `json:"estimatedWaitSeconds,omitempty"`
}

func (h *Handler) view(j *job.Job) JobView {
	v := JobView{Job: j}
	if est := h.mgr.EstimateFor(j); est != nil {
		v.QueuePosition = &est.QueuePosition
		v.EstimatedWaitSeconds = &est.WaitSeconds
	}
	return v
}

// handleSubmit queues a new download.
func (h *Handler) handleSubmit(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No URL provided"})
		return
	}

	j, err := h.mgr.Submit(req.URL)
	if errors.Is(err, job.ErrInvalidURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid YouTube URL"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue download", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, h.view(j))
}

// handleListDownloads lists all jobs, newest first, with queue estimates.
func (h *Handler) handleListDownloads(c *gin.Context) {
	jobs, err := h.mgr.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list downloads", "details": err.Error()})
		return
	}

	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, h.view(j))
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) handleGetDownload(c *gin.Context) {
	j, err := h.mgr.Get(c.Param("id"))
	if errors.Is(err, job.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Download not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load download", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view(j))
}

// handleGetVideo serves a completed artifact as an attachment.
func (h *Handler) handleGetVideo(c *gin.Context) {
	j, err := h.mgr.Get(c.Param("id"))
	if errors.Is(err, job.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Download not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load download", "details": err.Error()})
		return
	}

	if j.Status != job.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Video not ready yet"})
		return
	}
	if j.FilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video file not found"})
		return
	}
	if _, err := os.Stat(j.FilePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video file not found"})
		return
	}

	c.FileAttachment(j.FilePath, downloadFilename(j.Title, filepath.Ext(j.FilePath)))
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "ytqueue",
		"worker_running": h.mgr.Running(),
	})
}

var (
	unsafeTitleRunes = regexp.MustCompile(`[^\w\s-]`)
	dashRuns         = regexp.MustCompile(`[-\s]+`)
)

// downloadFilename derives the attachment name from a video title: unsafe
// runes stripped, whitespace and hyphen runs collapsed to single hyphens, the
// artifact's real extension appended.
func downloadFilename(title, ext string) string {
	safe := strings.TrimSpace(unsafeTitleRunes.ReplaceAllString(title, ""))
	safe = dashRuns.ReplaceAllString(safe, "-")
	if safe == "" {
		safe = "video"
	}
	return safe + ext
}
