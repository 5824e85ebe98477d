package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"qwenlink/internal/gateway/handlers"
	"qwenlink/internal/storage"
)

func queryInt(req *http.Request, key string) (int, error) {
	v := req.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func (r *Router) requireDB(w http.ResponseWriter) bool {
	if r.db == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "Session storage not available")
		return false
	}
	return true
}

// HandleListSessions handles GET /api/v1/sessions?limit=&offset=.
func (r *Router) HandleListSessions(w http.ResponseWriter, req *http.Request) {
	if !r.requireDB(w) {
		return
	}
	limit, err := queryInt(req, "limit")
	if err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}
	offset, err := queryInt(req, "offset")
	if err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}

	sessions, err := r.db.ListSessions(limit, offset)
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*storage.Session{}
	}
	handlers.SendJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
}

// HandleGetSession handles GET /api/v1/sessions/{id}.
func (r *Router) HandleGetSession(w http.ResponseWriter, req *http.Request) {
	if !r.requireDB(w) {
		return
	}
	session, err := r.db.GetSession(mux.Vars(req)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "Session not found")
		return
	}
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, err.Error())
		return
	}
	handlers.SendJSON(w, http.StatusOK, session)
}

// HandleGetMessages handles GET /api/v1/sessions/{id}/messages?limit=.
func (r *Router) HandleGetMessages(w http.ResponseWriter, req *http.Request) {
	if !r.requireDB(w) {
		return
	}
	id := mux.Vars(req)["id"]
	limit, err := queryInt(req, "limit")
	if err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}

	if _, err := r.db.GetSession(id); errors.Is(err, storage.ErrNotFound) {
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "Session not found")
		return
	}

	messages, err := r.db.GetMessages(id, limit)
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, err.Error())
		return
	}
	if messages == nil {
		messages = []*storage.Message{}
	}
	handlers.SendJSON(w, http.StatusOK, MessagesResponse{SessionID: id, Messages: messages})
}

// HandleDeleteSession handles DELETE /api/v1/sessions/{id}.
func (r *Router) HandleDeleteSession(w http.ResponseWriter, req *http.Request) {
	if !r.requireDB(w) {
		return
	}
	id := mux.Vars(req)["id"]
	err := r.db.DeleteSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "Session not found")
		return
	}
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
