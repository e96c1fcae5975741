package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/loader"
	"github.com/sanonone/kektormatch/pkg/match"
)

// maxBodySize bounds request bodies, imports included.
const maxBodySize = 64 << 20

var validate = validator.New()

func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /graph/nodes", s.handleNodeCreate)
	mux.HandleFunc("GET /graph/nodes", s.handleNodeList)
	mux.HandleFunc("GET /graph/nodes/{id}", s.handleNodeGet)
	mux.HandleFunc("PATCH /graph/nodes/{id}", s.handleNodePatch)
	mux.HandleFunc("DELETE /graph/nodes/{id}", s.handleNodeDelete)
	mux.HandleFunc("GET /graph/nodes/{id}/edges", s.handleNodeEdges)
	mux.HandleFunc("POST /graph/edges", s.handleEdgeCreate)
	mux.HandleFunc("GET /graph/edges/{id}", s.handleEdgeGet)
	mux.HandleFunc("DELETE /graph/edges/{id}", s.handleEdgeDelete)
	mux.HandleFunc("POST /graph/import", s.handleImport)
	mux.HandleFunc("POST /graph/traverse", s.handleTraverse)
	mux.HandleFunc("POST /graph/path", s.handlePath)

	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("POST /cluster", s.handleCluster)
	mux.HandleFunc("POST /cluster/label", s.handleClusterLabel)
	mux.HandleFunc("GET /tasks/{id}", s.handleTaskGet)

	mux.HandleFunc("POST /system/aof-rewrite", s.handleAOFRewriteHTTP)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"nodes":  s.Engine.NodeCount(),
		"edges":  s.Engine.EdgeCount(),
	})
}

// --- Graph ---

func (s *Server) handleNodeCreate(w http.ResponseWriter, r *http.Request) {
	var req NodeCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := req.ID
	var err error
	if id == 0 {
		id, err = s.Engine.AddNode(req.Labels, req.Properties)
	} else {
		err = s.Engine.PutNode(engine.Node{ID: id, Labels: req.Labels, Properties: req.Properties})
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleNodeList(w http.ResponseWriter, r *http.Request) {
	var ids []uint64
	if label := r.URL.Query().Get("label"); label != "" {
		ids = s.Engine.NodesByLabel(label)
	} else {
		ids = s.Engine.Nodes()
	}
	if ids == nil {
		ids = []uint64{}
	}
	s.writeHTTPResponse(w, http.StatusOK, IDsResponse{IDs: ids})
}

func (s *Server) handleNodeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, err := s.Engine.GetNode(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, n)
}

func (s *Server) handleNodePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req NodePatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Set) > 0 {
		if err := s.Engine.SetNodeProperties(id, req.Set); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if len(req.Remove) > 0 {
		if err := s.Engine.RemoveNodeProperties(id, req.Remove...); err != nil {
			s.writeError(w, err)
			return
		}
	}
	n, err := s.Engine.GetNode(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, n)
}

func (s *Server) handleNodeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.Engine.DeleteNode(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodeEdges(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var (
		edges []engine.Edge
		err   error
	)
	switch dir := r.URL.Query().Get("direction"); dir {
	case "", engine.DirOut:
		edges, err = s.Engine.Outgoing(id)
	case engine.DirIn:
		edges, err = s.Engine.Incoming(id)
	default:
		s.writeHTTPError(w, http.StatusBadRequest, fmt.Sprintf("direction must be %q or %q", engine.DirOut, engine.DirIn))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if edges == nil {
		edges = []engine.Edge{}
	}
	s.writeHTTPResponse(w, http.StatusOK, edges)
}

func (s *Server) handleEdgeCreate(w http.ResponseWriter, r *http.Request) {
	var req EdgeCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.Engine.AddEdge(req.Source, req.Target, req.Type, req.Properties)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleEdgeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	e, err := s.Engine.GetEdge(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, e)
}

func (s *Server) handleEdgeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.Engine.DeleteEdge(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport reads a graph script, or a class hierarchy CSV with
// ?format=csv, from the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	var (
		stats loader.Stats
		err   error
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "script":
		stats, err = loader.ImportScript(r.Context(), body, s.Engine)
	case "csv":
		stats, err = loader.ImportCSV(r.Context(), body, s.Engine, loader.DefaultCSVConfig())
	default:
		s.writeHTTPError(w, http.StatusBadRequest, fmt.Sprintf("unknown import format %q", format))
		return
	}
	if err != nil {
		// statements before the failing one stay applied
		s.writeHTTPResponse(w, http.StatusBadRequest, ImportResponse{Nodes: stats.Nodes, Edges: stats.Edges, Error: err.Error()})
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, ImportResponse{Nodes: stats.Nodes, Edges: stats.Edges})
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	var q engine.GraphQuery
	if !s.decode(w, r, &q) {
		return
	}
	ids, err := s.Engine.Traverse(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, IDsResponse{IDs: ids})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	var q engine.PathQuery
	if !s.decode(w, r, &q) {
		return
	}
	res, err := s.Engine.FindPath(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, res)
}

// --- Matching and clustering ---

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	run := func(ctx context.Context) (any, error) {
		return s.runMatch(ctx, req)
	}
	s.dispatch(w, r, "match", run)
}

func (s *Server) runMatch(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	res, err := s.matcher.Match(ctx, match.Request{
		A:         toNodeIDs(req.NodesA),
		B:         toNodeIDs(req.NodesB),
		Persist:   req.Persist,
		Threshold: req.Threshold,
	})
	if res == nil {
		return nil, err
	}
	resp := &MatchResponse{Result: res, Mappings: res.Mappings()}
	if err != nil {
		resp.PersistError = err.Error()
	}
	return resp, nil
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	var req ClusterRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, "cluster", func(ctx context.Context) (any, error) {
		return s.runCluster(ctx, req.NodeIDs, req.K, req.Persist)
	})
}

func (s *Server) handleClusterLabel(w http.ResponseWriter, r *http.Request) {
	var req ClusterLabelRequest
	if !s.decode(w, r, &req) {
		return
	}
	ids := s.Engine.NodesByLabel(req.Label)
	if len(ids) == 0 {
		s.writeHTTPError(w, http.StatusNotFound, fmt.Sprintf("no nodes labelled %q", req.Label))
		return
	}
	s.dispatch(w, r, "cluster", func(ctx context.Context) (any, error) {
		return s.runCluster(ctx, ids, req.K, req.Persist)
	})
}

func (s *Server) runCluster(ctx context.Context, ids []uint64, k int, persist bool) (*ClusterResponse, error) {
	res, err := s.clusterer.Cluster(ctx, cluster.Request{IDs: toNodeIDs(ids), K: k, Persist: persist})
	if res == nil {
		return nil, err
	}
	resp := &ClusterResponse{Result: res, NodeIDs: ids}
	if err != nil {
		resp.PersistError = err.Error()
	}
	return resp, nil
}

// dispatch runs fn inline, or as a task when ?async=true.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, kind string, fn func(context.Context) (any, error)) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); !async {
		out, err := fn(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeHTTPResponse(w, http.StatusOK, out)
		return
	}

	task := s.taskManager.NewTask(kind)
	go func() {
		task.SetStatus(TaskStatusRunning)
		out, err := fn(s.ctx)
		if err != nil {
			slog.Error("async task failed", "task", task.ID, "kind", kind, "error", err)
			task.SetError(err, nil)
			return
		}
		task.SetResult(out)
	}()
	s.writeHTTPResponse(w, http.StatusAccepted, TaskResponse{TaskID: task.ID})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	task, ok := s.taskManager.GetTask(r.PathValue("id"))
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, task)
}

// --- System ---

func (s *Server) handleAOFRewriteHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RewriteAOF(); err != nil {
		slog.Error("AOF rewrite via HTTP failed", "error", err)
		s.writeHTTPError(w, http.StatusInternalServerError, fmt.Sprintf("AOF rewrite failed: %v", err))
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "OK", "message": "AOF rewrite completed"})
}

// --- Helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func toNodeIDs(ids []uint64) []match.NodeID {
	out := make([]match.NodeID, len(ids))
	for i, id := range ids {
		out[i] = match.NodeID(id)
	}
	return out
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNodeNotFound), errors.Is(err, engine.ErrEdgeNotFound),
		errors.Is(err, engine.ErrNoPath):
		return http.StatusNotFound
	case errors.Is(err, match.ErrInvalidInput), errors.Is(err, cluster.ErrInvalidInput),
		errors.Is(err, engine.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeHTTPError(w, statusFor(err), err.Error())
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, map[string]string{"error": message})
}
