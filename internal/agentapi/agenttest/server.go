// Package agenttest provides a programmable stand-in for the agent service.
package agenttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/agentapi"
)

// Reply describes how the server answers one request. Body is encoded as
// JSON unless Raw is set. Hold, when non-nil, delays the reply until it is
// closed or the client goes away.
type Reply struct {
	Status int
	Body   any
	Raw    string
	Delay  time.Duration
	Hold   <-chan struct{}
}

// Handler produces a reply for a decoded agent request.
type Handler func(req agentapi.Request) Reply

// Call is a request the server received.
type Call struct {
	Path      string
	Request   agentapi.Request
	RequestID string
}

// Server is an httptest server speaking the agent contract.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	handlers  map[string]Handler
	calls     []Call
	reports   []string
	files     map[string][]byte
	chooseFn  func(agents []string) Reply
	downloads []string
}

// New starts a server that answers every agent endpoint with an empty
// message list until told otherwise. It is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: make(map[string]Handler),
		files:    make(map[string][]byte),
	}

	r := chi.NewRouter()
	for _, target := range agentapi.Targets() {
		endpoint, _ := target.Endpoint()
		r.Post(endpoint, s.agentHandler(endpoint))
	}
	r.Post(agentapi.EndpointChooseAgent, s.handleChoose)
	r.Get(agentapi.EndpointGetReports, s.handleReports)
	r.Get(agentapi.EndpointDownloadReportPDF+"/{name}", s.handleFile)
	r.Get(agentapi.EndpointDownloadReport+"/{name}", s.handleFile)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Handle installs h for the endpoint of target.
func (s *Server) Handle(target agentapi.Target, h Handler) {
	endpoint, _ := target.Endpoint()
	s.mu.Lock()
	s.handlers[endpoint] = h
	s.mu.Unlock()
}

// Respond makes target always answer with reply.
func (s *Server) Respond(target agentapi.Target, reply Reply) {
	s.Handle(target, func(agentapi.Request) Reply { return reply })
}

// HandleChoose installs the /choose-agent handler.
func (s *Server) HandleChoose(fn func(agents []string) Reply) {
	s.mu.Lock()
	s.chooseFn = fn
	s.mu.Unlock()
}

// SetReports sets what /get-reports lists.
func (s *Server) SetReports(names ...string) {
	s.mu.Lock()
	s.reports = append([]string(nil), names...)
	s.mu.Unlock()
}

// AddFile serves data under both download paths.
func (s *Server) AddFile(name string, data []byte) {
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
}

// Calls returns the agent requests received so far, in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Downloads returns the file names fetched so far.
func (s *Server) Downloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.downloads...)
}

// Messages builds a reply body carrying msgs.
func Messages(msgs ...agentapi.WireMessage) map[string]any {
	if msgs == nil {
		msgs = []agentapi.WireMessage{}
	}
	return map[string]any{"messages": msgs}
}

// WithReport adds a pdf_report field to a Messages body.
func WithReport(body map[string]any, report string) map[string]any {
	body["pdf_report"] = report
	return body
}

func (s *Server) agentHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agentapi.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Path:      endpoint,
			Request:   req,
			RequestID: r.Header.Get(agentapi.RequestIDHeader),
		})
		h := s.handlers[endpoint]
		s.mu.Unlock()

		reply := Reply{Body: Messages()}
		if h != nil {
			reply = h(req)
		}
		s.write(w, r, reply)
	}
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req agentapi.ChooseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	fn := s.chooseFn
	s.mu.Unlock()

	reply := Reply{Body: agentapi.ChooseResult{Status: "error", Message: "No valid agents selected."}}
	if fn != nil {
		reply = fn(req.SelectedAgents)
	}
	s.write(w, r, reply)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reports := append([]string{}, s.reports...)
	s.mu.Unlock()
	s.write(w, r, Reply{Body: map[string]any{"reports": reports}})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	data, ok := s.files[name]
	if ok {
		s.downloads = append(s.downloads, name)
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(data)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, reply Reply) {
	if reply.Hold != nil {
		select {
		case <-reply.Hold:
		case <-r.Context().Done():
			return
		}
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.Raw != "" {
		_, _ = w.Write([]byte(reply.Raw))
		return
	}
	if reply.Body != nil {
		_ = json.NewEncoder(w).Encode(reply.Body)
	}
}
