package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"k3rs/backend/internal/objectstore"
	"k3rs/backend/internal/store"
)

const maxPhotoBytes = 10 << 20

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	if s.photos == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "photo storage is not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
	file, _, err := r.FormFile("photo")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field \"photo\" is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read upload"})
		return
	}
	if len(data) > maxPhotoBytes {
		respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "photo exceeds 10 MiB"})
		return
	}
	contentType, _, err := objectstore.DetectImageType(data)
	if err != nil {
		respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		return
	}

	findingID := r.PathValue("id")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	key, err := s.photos.PutPhoto(ctx, findingID, data)
	if err != nil {
		if errors.Is(err, objectstore.ErrUnsupportedImage) {
			respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("photo upload failed", zap.String("finding_id", findingID), zap.Error(err))
		respondJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to store photo"})
		return
	}

	if err := s.store.AddPhoto(ctx, findingID, key, contentType); err != nil {
		if delErr := s.photos.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphan photo object", zap.String("key", key), zap.Error(delErr))
		}
		if errors.Is(err, store.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "finding not found"})
			return
		}
		s.respondStoreError(w, err, "failed to record photo")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"key": key, "content_type": contentType})
}
