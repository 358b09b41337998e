package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
)

// FormResponse is a blank record plus the bindings a client renders it with.
type FormResponse struct {
	Record   map[string]any        `json:"record"`
	Bindings []tabula.FieldBinding `json:"bindings"`
}

// FormInput carries raw string form values keyed by field name.
type FormInput struct {
	Values map[string]string `json:"values"`
}

func (s *Server) dataPointIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	datasetID, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	dataID, err := pathUUID(r, "dataId", tabula.NewDataPointNotFoundError)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return datasetID, dataID, nil
}

// handleListDataPoints handles GET /api/admin/datasets/{id}/data?page&limit
func (s *Server) handleListDataPoints(w http.ResponseWriter, r *http.Request) {
	datasetID, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	page, limit := parsePagination(r)
	result, err := s.manager.ListDataPoints(r.Context(), datasetID, page, limit)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleCreateDataPoint handles POST /api/admin/datasets/{id}/data
func (s *Server) handleCreateDataPoint(w http.ResponseWriter, r *http.Request) {
	datasetID, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	var in tabula.DataPointInput
	if err := readJSONBody(r, &in); err != nil {
		writeTabulaError(w, r, err)
		return
	}

	point, err := s.manager.CreateDataPoint(r.Context(), datasetID, &in)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, point)
}

// handleGetDataPoint handles GET /api/admin/datasets/{id}/data/{dataId}
func (s *Server) handleGetDataPoint(w http.ResponseWriter, r *http.Request) {
	datasetID, dataID, err := s.dataPointIDs(r)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	point, err := s.manager.GetDataPoint(r.Context(), datasetID, dataID)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, point)
}

// handleViewDataPoint handles GET /api/admin/datasets/{id}/data/{dataId}/view
func (s *Server) handleViewDataPoint(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.datasetSchema(w, r)
	if !ok {
		return
	}
	datasetID, dataID, err := s.dataPointIDs(r)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	point, err := s.manager.GetDataPoint(r.Context(), datasetID, dataID)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, tabula.BuildReadView(schema, point.Data))
}

// handleUpdateDataPoint handles PUT /api/admin/datasets/{id}/data/{dataId}
func (s *Server) handleUpdateDataPoint(w http.ResponseWriter, r *http.Request) {
	datasetID, dataID, err := s.dataPointIDs(r)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	var in tabula.DataPointInput
	if err := readJSONBody(r, &in); err != nil {
		writeTabulaError(w, r, err)
		return
	}

	point, err := s.manager.UpdateDataPoint(r.Context(), datasetID, dataID, &in)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, point)
}

// handleDeleteDataPoint handles DELETE /api/admin/datasets/{id}/data/{dataId}
func (s *Server) handleDeleteDataPoint(w http.ResponseWriter, r *http.Request) {
	datasetID, dataID, err := s.dataPointIDs(r)
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}

	if err := s.manager.DeleteDataPoint(r.Context(), datasetID, dataID); err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, MessageResponse{Message: "Data point deleted successfully"})
}

// handleGetForm handles GET /api/admin/datasets/{id}/form
func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.datasetSchema(w, r)
	if !ok {
		return
	}
	record := tabula.BlankRecord(schema)
	writeSuccess(w, http.StatusOK, FormResponse{Record: record, Bindings: tabula.Bind(schema, record)})
}

// handlePostForm handles POST /api/admin/datasets/{id}/form. Raw strings are
// decoded through the field codec before the record is created.
func (s *Server) handlePostForm(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.datasetSchema(w, r)
	if !ok {
		return
	}

	var in FormInput
	if err := readJSONBody(r, &in); err != nil {
		writeTabulaError(w, r, err)
		return
	}

	datasetID, _ := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	point, err := s.manager.CreateDataPoint(r.Context(), datasetID, &tabula.DataPointInput{
		Data: tabula.DecodeForm(schema, in.Values),
	})
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, point)
}

func (s *Server) datasetSchema(w http.ResponseWriter, r *http.Request) (tabula.Schema, bool) {
	id, err := pathUUID(r, "id", tabula.NewDatasetNotFoundError)
	if err != nil {
		writeTabulaError(w, r, err)
		return tabula.Schema{}, false
	}
	ds, err := s.manager.GetDataset(r.Context(), id)
	if err != nil {
		writeTabulaError(w, r, err)
		return tabula.Schema{}, false
	}
	schema, err := ds.FieldSchema()
	if err != nil {
		writeTabulaError(w, r, err)
		return tabula.Schema{}, false
	}
	return schema, true
}
