// Package kelvintest provides an in-process Kelvin API for tests.
package kelvintest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Upload is one request the server received.
type Upload struct {
	AssignmentID string
	Auth         string
	RequestID    string
	ContentType  string
	FileName     string
	PartType     string
	Archive      []byte
}

// Server answers POST /api/submits/{id}. Tokens lists accepted bearer
// tokens and Tasks the known assignment ids with their names. Status, when
// non-zero, forces the response status and Body replaces the response body.
type Server struct {
	*httptest.Server

	Tokens map[string]bool
	Tasks  map[string]string
	Status int
	Body   string

	mu      sync.Mutex
	uploads []Upload
	nextID  int64
}

func NewServer() *Server {
	s := &Server{
		Tokens: map[string]bool{},
		Tasks:  map[string]string{},
		nextID: 1,
	}
	r := chi.NewRouter()
	r.Post("/api/submits/{id}", s.createSubmit)
	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

type submitResponse struct {
	Submit struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"submit"`
	Task struct {
		Name string `json:"name"`
	} `json:"task"`
}

func (s *Server) createSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	up := Upload{
		AssignmentID: id,
		Auth:         r.Header.Get("Authorization"),
		RequestID:    r.Header.Get("X-Request-Id"),
		ContentType:  r.Header.Get("Content-Type"),
	}

	if err := r.ParseMultipartForm(32 << 20); err == nil {
		if f, hdr, err := r.FormFile("solution"); err == nil {
			up.FileName = hdr.Filename
			up.PartType = hdr.Header.Get("Content-Type")
			up.Archive, _ = io.ReadAll(f)
			f.Close()
		}
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, up)
	submitID := s.nextID
	s.nextID++
	s.mu.Unlock()

	if s.Status != 0 {
		w.WriteHeader(s.Status)
		_, _ = io.WriteString(w, s.Body)
		return
	}

	token := strings.TrimPrefix(up.Auth, "Bearer ")
	if !s.Tokens[token] {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	name, ok := s.Tasks[id]
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if up.Archive == nil {
		http.Error(w, "missing solution", http.StatusBadRequest)
		return
	}

	if s.Body != "" {
		_, _ = io.WriteString(w, s.Body)
		return
	}

	var resp submitResponse
	resp.Submit.ID = submitID
	resp.Submit.URL = fmt.Sprintf("%s/task/%s/student/%s", s.URL, id, strconv.FormatInt(submitID, 10))
	resp.Task.Name = name
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}
