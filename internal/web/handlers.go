package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"visioncraft/internal/imagefile"
	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

// dataURLUpload is the JSON alternative to a multipart upload.
type dataURLUpload struct {
	Image string `json:"image" binding:"required"`
}

type themeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

type backgroundRemovalRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type canvasViewRequest struct {
	View string `json:"view" binding:"required"`
}

type catalogResponse struct {
	AspectRatios []poster.NamedOption `json:"aspect_ratios"`
	PromptModes  []poster.NamedOption `json:"prompt_modes"`
	Themes       []poster.NamedOption `json:"themes"`
	Accepted     []string             `json:"accepted"`
	MaxUpload    int                  `json:"max_upload_bytes"`
	Defaults     poster.Settings      `json:"defaults"`
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, renderState(currentSession(c).Studio.Snapshot()))
}

func (s *Server) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, catalogResponse{
		AspectRatios: poster.AspectRatios(),
		PromptModes:  poster.PromptModes(),
		Themes:       poster.Themes(),
		Accepted:     imagefile.Accepted(),
		MaxUpload:    imagefile.MaxUploadBytes,
		Defaults:     poster.DefaultSettings(),
	})
}

func (s *Server) uploadImage(c *gin.Context) {
	if c.ContentType() == gin.MIMEJSON {
		s.uploadDataURL(c)
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "missing image")
		return
	}
	if header.Size > imagefile.MaxUploadBytes {
		abortWithError(c, http.StatusBadRequest, imagefile.ErrTooLarge.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "failed to read image")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imagefile.MaxUploadBytes+1))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "failed to read image")
		return
	}

	img, err := imagefile.Decode(data, header.Header.Get("Content-Type"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, renderState(currentSession(c).Studio.Upload(img)))
}

func (s *Server) uploadDataURL(c *gin.Context) {
	var req dataURLUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "missing image")
		return
	}

	img, err := imagefile.DecodeDataURL(req.Image)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, renderState(currentSession(c).Studio.Upload(img)))
}

func (s *Server) clearImage(c *gin.Context) {
	c.JSON(http.StatusOK, renderState(currentSession(c).Studio.ClearImage()))
}

func (s *Server) getImage(c *gin.Context) {
	snap := currentSession(c).Studio.Snapshot()

	var img *poster.Image
	switch c.Param("variant") {
	case "original":
		if snap.Product != nil {
			img = &snap.Product.Image
		}
	case "cutout":
		if snap.Cutout != nil {
			img = &snap.Cutout.Image
		}
	case "active":
		if active := snap.ActiveImage(); active != nil {
			img = &active.Image
		}
	case "poster":
		if snap.Generated != nil {
			img = &snap.Generated.Image
		}
	}
	if img == nil || img.IsZero() {
		abortWithError(c, http.StatusNotFound, "image not found")
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, img.MimeType, img.Data)
}

func (s *Server) patchSettings(c *gin.Context) {
	var patch poster.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid settings payload")
		return
	}

	state, err := currentSession(c).Studio.UpdateSettings(patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderState(state))
}

func (s *Server) putTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "theme is required")
		return
	}

	state, err := currentSession(c).Studio.SetTheme(req.Theme)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderState(state))
}

func (s *Server) putBackgroundRemoval(c *gin.Context) {
	var req backgroundRemovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "enabled is required")
		return
	}
	c.JSON(http.StatusOK, renderState(currentSession(c).Studio.SetRemoveBackground(*req.Enabled)))
}

func (s *Server) putCanvasView(c *gin.Context) {
	var req canvasViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "view is required")
		return
	}

	view, ok := studio.ParseView(req.View)
	if !ok {
		s.writeError(c, fmt.Errorf("%w: %q", studio.ErrUnknownView, req.View))
		return
	}

	state, err := currentSession(c).Studio.SetCanvasView(view)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderState(state))
}

func (s *Server) reset(c *gin.Context) {
	c.JSON(http.StatusOK, renderState(currentSession(c).Studio.Reset()))
}

func (s *Server) generate(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
	defer cancel()

	state, err := currentSession(c).Studio.Generate(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderState(state))
}

func (s *Server) advice(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
	defer cancel()

	state, err := currentSession(c).Studio.GetAdvice(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderState(state))
}

func (s *Server) download(c *gin.Context) {
	img, name, err := currentSession(c).Studio.Download()
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, img.MimeType, img.Data)
}

func (s *Server) exportPDF(c *gin.Context) {
	data, name, err := currentSession(c).Studio.ExportPDF()
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, studio.ErrNoProductImage),
		errors.Is(err, studio.ErrNoPoster),
		errors.Is(err, studio.ErrBusy),
		errors.Is(err, studio.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, studio.ErrInvalidSettings),
		errors.Is(err, studio.ErrUnknownTheme),
		errors.Is(err, studio.ErrUnknownView):
		status = http.StatusBadRequest
	}

	_ = c.Error(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	abortWithError(c, status, message)
}
