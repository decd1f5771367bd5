package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
)

type syncRequest struct {
	Path    string `json:"path"`
	Source  string `json:"source"`
	Profile string `json:"profile"`
}

type commitRequest struct {
	ChangeIDs []string `json:"change_ids"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	family, err := ir.ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "decode request: "+err.Error())
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = s.paths[family]
	}
	if path == "" {
		badRequest(w, "path is required: no default "+family.String()+" source is configured")
		return
	}

	reader, err := s.readers(family, path)
	if err != nil {
		s.writeEngineError(w, r, engine.SourceReadError(path, err))
		return
	}

	res, err := s.engine.Sync(r.Context(), engine.SyncRequest{
		Reader:  reader,
		Source:  req.Source,
		Profile: req.Profile,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	status := ir.BatchStatus(r.URL.Query().Get("status"))
	batches, err := s.engine.ListBatches(r.Context(), status)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, batches)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "decode request: "+err.Error())
		return
	}

	res, err := s.engine.Commit(r.Context(), chi.URLParam(r, "id"), req.ChangeIDs)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	batch, err := s.engine.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, batch)
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, "limit: "+err.Error())
		return
	}

	q := r.URL.Query()
	var family ir.SourceFamily
	if f := q.Get("family"); f != "" {
		family, err = ir.ParseFamily(f)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	bookmarks, err := s.engine.ListBookmarks(r.Context(), engine.BookmarkQuery{
		Query:  q.Get("q"),
		Family: family,
		Limit:  limit,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, bookmarks)
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.GetBookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, b)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, history)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.Revert(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "historyID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, b)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var family ir.SourceFamily
	if f := r.URL.Query().Get("family"); f != "" {
		var err error
		family, err = ir.ParseFamily(f)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	stats, err := s.engine.Stats(r.Context(), family)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
