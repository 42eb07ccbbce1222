// Package handler contains the HTTP handlers of the social graph API.
//
// Handlers are the glue between HTTP and the service layer:
//  1. Parse the request (URL params, query, JSON or multipart body)
//  2. Call one service operation
//  3. Write the JSON response, or map the error with writeError
//
// They hold no business rules. Every handler assumes auth.RequireAuth ran
// before it, except the ones in auth.go.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/service"
	"github.com/sakif/socialgraph/internal/upload"
)

// AccountHandler serves the viewer's own account and the follow graph.
type AccountHandler struct {
	accounts  *service.AccountService
	relations *service.RelationshipService
	recommend *service.RecommendationService
	uploads   *upload.Store
	logger    *slog.Logger
}

func NewAccountHandler(
	accounts *service.AccountService,
	relations *service.RelationshipService,
	recommend *service.RecommendationService,
	uploads *upload.Store,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		relations: relations,
		recommend: recommend,
		uploads:   uploads,
		logger:    logger,
	}
}

type privacyRequest struct {
	IsPrivate *bool `json:"isPrivate" validate:"required"`
}

type usernameRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleMe returns the viewer's account.
//
// HTTP: GET /api/me
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	me, err := h.accounts.Me(r.Context(), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleSetPrivacy switches the account between public and private.
//
// HTTP: PATCH /api/me/privacy  {"isPrivate": true}
func (h *AccountHandler) HandleSetPrivacy(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	var req privacyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	isPrivate, err := h.accounts.SetPrivacy(r.Context(), viewerID, *req.IsPrivate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isPrivate": isPrivate})
}

// HandleChangeUsername renames the account.
//
// HTTP: PATCH /api/me/username  {"username": "...", "password": "..."}
func (h *AccountHandler) HandleChangeUsername(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	var req usernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	me, err := h.accounts.ChangeUsername(r.Context(), viewerID, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleSetAvatar stores an uploaded picture and makes it the avatar.
//
// HTTP: PUT /api/me/avatar  (multipart, field "avatar")
func (h *AccountHandler) HandleSetAvatar(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	form, err := parseMultipart(w, r, upload.MaxFileSize+1<<20, h.logger)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.RemoveAll()

	files := form.File[avatarField]
	if len(files) == 0 {
		writeError(w, apperror.ValidationFailed(avatarField, "No file uploaded"))
		return
	}
	if len(files) > 1 {
		writeError(w, apperror.ValidationFailed(avatarField, "Only one avatar may be uploaded"))
		return
	}

	path, err := h.uploads.Save(upload.KindAvatar, files[0])
	if err != nil {
		logUploadFailure(h.logger, r, viewerID, err)
		writeError(w, err)
		return
	}

	me, err := h.accounts.SetAvatar(r.Context(), viewerID, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleClearAvatar removes the avatar.
//
// HTTP: DELETE /api/me/avatar
func (h *AccountHandler) HandleClearAvatar(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	me, err := h.accounts.ClearAvatar(r.Context(), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleSearch finds accounts by prefix.
//
// HTTP: GET /api/account/search/{text}
func (h *AccountHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewerFrom(w, r); !ok {
		return
	}

	users, err := h.accounts.Search(r.Context(), chi.URLParam(r, "text"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleRecommended lists the newest accounts other than the viewer.
//
// HTTP: GET /api/account/recommended?limit=20
func (h *AccountHandler) HandleRecommended(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a number"))
			return
		}
		limit = n
	}

	rec, err := h.recommend.Recommend(r.Context(), viewerID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandlePendingRequests lists follow requests awaiting the viewer.
//
// HTTP: GET /api/account/requests
func (h *AccountHandler) HandlePendingRequests(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}

	requests, err := h.relations.PendingRequests(r.Context(), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// HandleRespond returns the accept or decline handler for a follow request.
//
// HTTP: PATCH /api/account/request/{id}/accept
//
//	PATCH /api/account/request/{id}/decline
func (h *AccountHandler) HandleRespond(decision service.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, ok := viewerFrom(w, r)
		if !ok {
			return
		}
		requestID, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := h.relations.RespondToRequest(r.Context(), viewerID, requestID, decision)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// HandleToggleFollow advances the viewer's edge to the target account.
//
// HTTP: POST /api/account/{id}/follow
func (h *AccountHandler) HandleToggleFollow(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	targetID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.relations.ToggleFollow(r.Context(), viewerID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleProfile returns an account with its counts and the viewer's status.
//
// HTTP: GET /api/account/{id}
func (h *AccountHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	ownerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.relations.Profile(r.Context(), viewerID, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleFollowers lists who follows an account.
//
// HTTP: GET /api/account/{id}/followers
func (h *AccountHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	h.graph(w, r, h.relations.Followers)
}

// HandleFollowings lists whom an account follows.
//
// HTTP: GET /api/account/{id}/followings
func (h *AccountHandler) HandleFollowings(w http.ResponseWriter, r *http.Request) {
	h.graph(w, r, h.relations.Followings)
}

func (h *AccountHandler) graph(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, viewerID, ownerID int64) (*model.GraphListing, error),
) {
	viewerID, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	ownerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := list(r.Context(), viewerID, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}
