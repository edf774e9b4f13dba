// Package httpapi implements the HTTP surface described in spec §6: the
// contract the storage core is consumed through. The transport itself is
// explicitly out of scope for the core's design (spec §1), but a thin
// implementation is included here as the one thing that exercises the
// core end-to-end, built the teacher's way: raw net/http handlers on an
// http.ServeMux (see pkg/webserver/webserver.go), no router framework.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Quyzi/mc6/pkg/backend"
	"github.com/Quyzi/mc6/pkg/mc6err"
	"github.com/Quyzi/mc6/pkg/meta"
	"github.com/Quyzi/mc6/pkg/search"
)

// Server wires a Backend and a search.Engine to the §6 HTTP contract.
type Server struct {
	backend        *backend.Backend
	engine         *search.Engine
	log            *zap.SugaredLogger
	objectMaxBytes int64
}

// New builds a Server, registering every §6 route on mux.
func New(mux *http.ServeMux, b *backend.Backend, log *zap.SugaredLogger) *Server {
	s := &Server{
		backend:        b,
		engine:         search.New(b),
		log:            log,
		objectMaxBytes: int64(b.Config().Mauve.ObjectMaxSizeMB) << 20,
	}
	s.routes(mux)
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/backend/status", s.handleStatus)

	mux.HandleFunc("GET /v1/collections/", s.handleListCollections)
	mux.HandleFunc("GET /v1/collections/{c}", s.handleListObjects)
	mux.HandleFunc("DELETE /v1/collections/{c}", s.handleDeleteCollection)

	mux.HandleFunc("GET /v1/objects/describe/{c}/{n}", s.handleDescribe)

	mux.HandleFunc("HEAD /v1/objects/{c}/{n}", s.handleHeadObject)
	mux.HandleFunc("GET /v1/objects/{c}/{n}", s.handleGetObject)
	mux.HandleFunc("POST /v1/objects/{c}/{n}", s.handleCreateObject)
	mux.HandleFunc("PUT /v1/objects/{c}/{n}", s.handlePutObject)
	mux.HandleFunc("DELETE /v1/objects/{c}/{n}", s.handleDeleteObject)

	mux.HandleFunc("POST /v1/search/", s.handleSearch)
}

func writeError(w http.ResponseWriter, err error) {
	status := mc6err.StatusFor(err)
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.backend.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Errorw("encode status response", "error", err)
	}
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.backend.ListCollections()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		s.log.Errorw("encode collections response", "error", err)
	}
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	c := r.PathValue("c")
	prefix := r.URL.Query().Get("prefix")

	coll, err := s.backend.GetCollection(c)
	if err != nil {
		writeError(w, err)
		return
	}
	names, err := coll.ListObjects(prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		s.log.Errorw("encode object list response", "error", err)
	}
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	c := r.PathValue("c")
	if err := s.backend.DeleteCollection(c); err != nil {
		writeError(w, err)
		return
	}
	w.Write([]byte(c))
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	c, n := r.PathValue("c"), r.PathValue("n")
	coll, err := s.backend.GetCollection(c)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := coll.HeadObject(n)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	c, n := r.PathValue("c"), r.PathValue("n")
	coll, err := s.backend.GetCollection(c)
	if err != nil {
		writeError(w, err)
		return
	}
	object, err := coll.GetObject(n)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := coll.GetObjectMetadata(n)
	if err != nil && mc6err.KindOf(err) != mc6err.KindObjectNotFound {
		writeError(w, err)
		return
	}
	writeMetadataHeaders(w, m)
	w.Write(object)
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	c, n := r.PathValue("c"), r.PathValue("n")
	coll, err := s.backend.GetCollection(c)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := coll.GetObjectMetadata(n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMetadataHeaders(w, m)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DescribeResponse{
		ContentType:     m.ContentType,
		ContentEncoding: m.ContentEncoding,
		ContentLanguage: m.ContentLanguage,
		Size:            m.Size,
		Labels:          m.LabelString(),
		OffsetMap:       m.OffsetMap,
	})
}

// DescribeResponse is the JSON body of the describe-object response
// (spec §6).
type DescribeResponse struct {
	ContentType     string `json:"content_type"`
	ContentEncoding string `json:"content_encoding"`
	ContentLanguage string `json:"content_language"`
	Size            uint64 `json:"size"`
	Labels          string `json:"labels"`
	OffsetMap       string `json:"offset_map"`
}

func (s *Server) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	s.putObject(w, r, false)
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	s.putObject(w, r, true)
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, replace bool) {
	c, n := r.PathValue("c"), r.PathValue("n")

	if r.ContentLength > s.objectMaxBytes {
		http.Error(w, "object exceeds object_max_size_mb", http.StatusRequestEntityTooLarge)
		return
	}
	body := http.MaxBytesReader(w, r.Body, s.objectMaxBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "object exceeds object_max_size_mb", http.StatusRequestEntityTooLarge)
		return
	}

	coll, err := s.backend.GetCollection(c)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := coll.PutObject(n, data, replace); err != nil {
		writeError(w, err)
		return
	}

	m := metadataFromHeaders(r)
	if err := coll.PutObjectMetadata(n, m); err != nil {
		writeError(w, err)
		return
	}

	w.Write([]byte(n))
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	c, n := r.PathValue("c"), r.PathValue("n")
	coll, err := s.backend.GetCollection(c)
	if err != nil {
		writeError(w, err)
		return
	}
	prior, err := coll.DeleteObject(n)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Write(prior)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var wireReq wireSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
		http.Error(w, "invalid search request body", http.StatusBadRequest)
		return
	}
	req, err := wireReq.toRequest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.engine.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fromResponse(resp))
}

// writeMetadataHeaders mirrors spec §6's metadata header table in both
// directions.
func writeMetadataHeaders(w http.ResponseWriter, m meta.Metadata) {
	h := w.Header()
	h.Set("Content-Type", m.ContentType)
	h.Set("Content-Encoding", m.ContentEncoding)
	h.Set("Content-Language", m.ContentLanguage)
	h.Set("Content-Length", strconv.FormatUint(m.Size, 10))
	h.Set("x-mauve-content-type", m.ContentType)
	h.Set("x-mauve-content-encoding", m.ContentEncoding)
	h.Set("x-mauve-content-language", m.ContentLanguage)
	h.Set("x-mauve-labels", m.LabelString())
	h.Set("x-mauve-offsets-inclusive", m.OffsetMap)
}

// metadataFromHeaders builds Metadata from the request headers spec §6
// describes for POST/PUT.
func metadataFromHeaders(r *http.Request) meta.Metadata {
	size := r.ContentLength
	if size < 0 {
		size = 0
	}
	return meta.Metadata{
		ContentType:     r.Header.Get("Content-Type"),
		ContentEncoding: r.Header.Get("Content-Encoding"),
		ContentLanguage: r.Header.Get("Content-Language"),
		Size:            uint64(size),
		Labels:          meta.ParseLabelHeader(r.Header.Get("x-mauve-labels")),
		OffsetMap:       r.Header.Get("x-mauve-offsets-inclusive"),
	}
}

