package v1

import (
	"encoding/json"
	"net/http"

	"qwenlink/internal/gateway/handlers"
)

// HandleEmbeddings handles POST /api/v1/embeddings.
func (r *Router) HandleEmbeddings(w http.ResponseWriter, req *http.Request) {
	var embReq EmbeddingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&embReq); err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if len(embReq.Input) == 0 {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Input is required")
		return
	}

	if r.embeddings == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "Embedding service not available")
		return
	}

	vectors, err := r.embeddings.GenerateEmbeddings(req.Context(), embReq.Input)
	if err != nil {
		sendChatError(w, err)
		return
	}

	resp := EmbeddingsResponse{Model: r.embeddings.ModelID(), Data: make([]EmbeddingData, len(vectors))}
	for i, v := range vectors {
		resp.Data[i] = EmbeddingData{Index: i, Embedding: v}
	}
	handlers.SendJSON(w, http.StatusOK, resp)
}
