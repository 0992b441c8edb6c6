package framebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/framebase/framebase/pkg/migrate"
	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

const defaultSampleLimit = 100

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// writeError maps store and migration errors onto HTTP statuses.
func (a *App) writeError(w http.ResponseWriter, err error) {
	var (
		missing *migrate.MissingRevisionError
		partial *migrate.PartialWriteError
		schema  *models.SchemaError
	)
	switch {
	case errors.Is(err, store.ErrDatasetNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDatasetExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrLeaseHeld):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &missing):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &schema):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &partial):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		a.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createDatasetRequest struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
}

func (a *App) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "dataset name is required")
		return
	}
	mt, err := models.ParseMediaType(req.MediaType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := models.NewDatasetDescriptor(req.Name, mt, a.registry.Latest())
	if err := a.store.CreateDataset(r.Context(), d); err != nil {
		a.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (a *App) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := a.store.ListDatasets(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if datasets == nil {
		datasets = []*models.DatasetDescriptor{}
	}
	respondJSON(w, http.StatusOK, datasets)
}

func (a *App) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	d, err := a.store.GetDataset(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (a *App) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteDataset(r.Context(), mux.Vars(r)["name"]); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleListSamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := a.store.GetDataset(ctx, mux.Vars(r)["name"])
	if err != nil {
		a.writeError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", defaultSampleLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := a.store.ListDocuments(ctx, d.SampleCollectionName, limit, offset)
	if err != nil {
		a.writeError(w, err)
		return
	}
	total, err := a.store.CountDocuments(ctx, d.SampleCollectionName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if samples == nil {
		samples = []models.Document{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"samples": samples,
		"total":   total,
	})
}

type migrateRequest struct {
	// TargetVersion is the schema version to migrate to. Omitted means
	// the latest registered version.
	TargetVersion *int `json:"target_version"`
}

func (a *App) handleMigrateDataset(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := -1
	if req.TargetVersion != nil {
		target = *req.TargetVersion
	}

	res, err := a.Migrate(r.Context(), mux.Vars(r)["name"], target)
	if err != nil {
		a.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
