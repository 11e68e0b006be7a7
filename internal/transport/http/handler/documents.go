package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/app"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/response"
)

const (
	msgNoFile          = "No file uploaded."
	msgOnlyPDF         = "Only .pdf files are allowed!"
	msgDocNotFound     = "Document not found."
	msgStorageFailed   = "Could not save the uploaded file."
	msgListFailed      = "Could not list documents."
)

type DocumentHandler struct {
	docs      *app.DocumentService
	formField string
	log       *logger.Logger
}

type UploadResponse struct {
	Message  string `json:"message"`
	SavedAs  string `json:"savedAs"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func NewDocumentHandler(docs *app.DocumentService, formField string, log *logger.Logger) *DocumentHandler {
	if formField == "" {
		formField = "pdf"
	}
	return &DocumentHandler{docs: docs, formField: formField, log: log}
}

// Upload streams the file part straight into the stager; an oversize upload
// is cut off once it crosses the ceiling.
func (h *DocumentHandler) Upload(c *gin.Context) {
	part, err := h.filePart(c.Request)
	if err != nil {
		switch {
		case isBodyTooLarge(err):
			h.tooLarge(c)
		default:
			response.Error(c, http.StatusBadRequest, response.CodeNoFile, msgNoFile)
		}
		return
	}
	defer part.Close()

	doc, err := h.docs.Stage(c.Request.Context(), app.StageInput{
		OriginalName: part.FileName(),
		MimeType:     part.Header.Get("Content-Type"),
		Size:         -1,
		Content:      part,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoFileProvided):
			response.Error(c, http.StatusBadRequest, response.CodeNoFile, msgNoFile)
		case errors.Is(err, app.ErrUnsupportedMediaType):
			response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedMedia, msgOnlyPDF)
		case errors.Is(err, app.ErrPayloadTooLarge):
			h.tooLarge(c)
		case errors.Is(err, app.ErrClientGone):
			c.AbortWithStatus(statusClientClosedRequest)
		default:
			h.log.Error("stage upload failed", "file", part.FileName(), "err", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, msgStorageFailed)
		}
		return
	}

	h.log.Info("document staged", "original", doc.OriginalName, "stored", doc.StoredName, "bytes", doc.SizeBytes)
	response.OK(c, UploadResponse{
		Message:  fmt.Sprintf("File '%s' uploaded successfully.", doc.OriginalName),
		SavedAs:  doc.StoredName,
		Filename: doc.OriginalName,
		Size:     doc.SizeBytes,
	})
}

// filePart advances to the first file part named by the configured form field.
// Parts before it are skipped without being buffered.
func (h *DocumentHandler) filePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, app.ErrNoFileProvided
			}
			return nil, err
		}
		if part.FormName() == h.formField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		h.log.Error("list documents failed", "err", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, msgListFailed)
		return
	}
	response.OK(c, docs)
}

// Serve returns the stored bytes unchanged. Range and conditional requests
// are handled by http.ServeContent.
func (h *DocumentHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	file, info, err := h.docs.Open(name)
	if err != nil {
		if errors.Is(err, app.ErrDocumentNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, msgDocNotFound)
			return
		}
		h.log.Error("open document failed", "name", name, "err", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "Could not read the document.")
		return
	}
	defer file.Close()

	c.Header("Content-Type", app.PDFMimeType)
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": info.Name()}))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "public, max-age=300")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

func (h *DocumentHandler) tooLarge(c *gin.Context) {
	limit := h.docs.MaxBytes() >> 20
	response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
		fmt.Sprintf("File is too large. The limit is %d MB.", limit))
}
