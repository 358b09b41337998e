package main

import (
	"net/http"

	"github.com/lychee-technology/tabula"
)

// handleListDatasets handles GET /api/admin/datasets
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.manager.ListDatasets(r.Context())
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	if datasets == nil {
		datasets = []*tabula.Dataset{}
	}
	writeSuccess(w, http.StatusOK, datasets)
}

// handleCreateDataset handles POST /api/admin/datasets
func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var in tabula.DatasetInput
	if err := readJSONBody(r, &in); err != nil {
		writeTabulaError(w, r, err)
		return
	}

	ds, err := s.manager.CreateDataset(r.Context(), &in)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, ds)
}

// handleGetDataset handles GET /api/admin/datasets/{id}
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	ds, err := s.manager.GetDataset(r.Context(), id)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, ds)
}

// handleUpdateDataset handles PUT /api/admin/datasets/{id}
func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	var in tabula.DatasetInput
	if err := readJSONBody(r, &in); err != nil {
		writeTabulaError(w, r, err)
		return
	}

	ds, err := s.manager.UpdateDataset(r.Context(), id, &in)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, ds)
}

// handleDeleteDataset handles DELETE /api/admin/datasets/{id}
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	if err := s.manager.DeleteDataset(r.Context(), id); err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, MessageResponse{Message: "Dataset deleted successfully"})
}

// handleExportDataset handles POST /api/admin/datasets/{id}/export
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "Export is not configured")
		return
	}

	id, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	ds, err := s.manager.GetDataset(r.Context(), id)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	result, err := s.exporter.ExportDataset(r.Context(), ds)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, result)
}
