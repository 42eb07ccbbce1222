package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/service"
	"github.com/sakif/socialgraph/internal/upload"
)

// Multipart field names used by the web client.
const (
	photosField = "photos"
	avatarField = "avatar"
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 8 << 20

// PostHandler serves posts and their likes and comments.
type PostHandler struct {
	posts   *service.EngagementService
	uploads *upload.Store
	logger  *slog.Logger
}

func NewPostHandler(posts *service.EngagementService, uploads *upload.Store, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:   posts,
		uploads: uploads,
		logger:  logger,
	}
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

// HandleCreate stores the uploaded photos and creates the post. Files are
// written before the transaction; the service removes them if it fails.
//
// HTTP: POST /api/posts  (multipart: title, description, photos[])
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	form, err := parseMultipart(w, r, upload.MaxRequestBytes, h.logger)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.RemoveAll()

	paths, err := h.uploads.SaveAll(upload.KindPost, form.File[photosField])
	if err != nil {
		logUploadFailure(h.logger, r, viewerID, err)
		writeError(w, err)
		return
	}

	post, err := h.posts.CreatePost(r.Context(), viewerID, formValue(form, "title"), formValue(form, "description"), paths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleGet returns one post with its comments.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.posts.PostDetail(r.Context(), viewerID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleListByUser returns an account's posts, newest first.
//
// HTTP: GET /api/account/{id}/posts
func (h *PostHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	ownerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.posts.ListPosts(r.Context(), viewerID, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleLike toggles the viewer's like.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.posts.ToggleLike(r.Context(), viewerID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleComment adds a comment.
//
// HTTP: POST /api/posts/{id}/comments  {"text": "..."}
func (h *PostHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.posts.AddComment(r.Context(), viewerID, postID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// parseMultipart reads a multipart body of at most limit bytes. The caller
// must call RemoveAll on the returned form. The client only sees a generic
// message, so the decoder's own error is logged here.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64, logger *slog.Logger) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.Warn("rejected multipart form",
			slog.String("path", r.URL.Path),
			slog.String("requestID", chimiddleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.ValidationFailed("", "Request body too large")
		}
		return nil, apperror.ValidationFailed("", "Invalid multipart form")
	}
	return r.MultipartForm, nil
}

// logUploadFailure records why storing an upload failed. Rejected files are
// a warning; anything else never reaches the client and is an error.
func logUploadFailure(logger *slog.Logger, r *http.Request, viewerID int64, err error) {
	level := slog.LevelError
	if apperror.Is(err) {
		level = slog.LevelWarn
	}
	logger.LogAttrs(r.Context(), level, "upload failed",
		slog.Int64("userID", viewerID),
		slog.String("path", r.URL.Path),
		slog.String("requestID", chimiddleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
