package mockserver

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"elmtorture/internal/suite"
	"elmtorture/pkg/logging"
)

// scriptHandler serves the scripted responses strictly in order.
type scriptHandler struct {
	session uuid.UUID
	items   []suite.NetworkItem
	fatal   FatalFunc

	mu  sync.Mutex
	pos int
}

func newScriptHandler(session uuid.UUID, items []suite.NetworkItem, fatal FatalFunc) *scriptHandler {
	return &scriptHandler{session: session, items: items, fatal: fatal}
}

func (h *scriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	h.mu.Lock()
	defer h.mu.Unlock()

	logging.Debug("MockServer", "Server %s: request %d %s %s", h.session, h.pos+1, r.Method, r.URL.RequestURI())

	if h.pos >= len(h.items) {
		h.violation(w, fmt.Sprintf("unscripted request %s %s: all %d scripted requests have been served",
			r.Method, r.URL.RequestURI(), len(h.items)))
		return
	}

	want := h.items[h.pos].Request
	if !strings.EqualFold(r.Method, want.Method) || !pathMatches(r, want.URL) {
		h.violation(w, fmt.Sprintf("request %d: expected %s %s, got %s %s",
			h.pos+1, strings.ToUpper(want.Method), want.URL, r.Method, r.URL.RequestURI()))
		return
	}

	body := h.items[h.pos].Response
	h.pos++
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

func (h *scriptHandler) violation(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusInternalServerError)
	h.fatal(fmt.Sprintf("server %s: %s", h.session, msg))
}

// served reports how many scripted items have been consumed.
func (h *scriptHandler) served() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

// pathMatches compares against the path, or the path and query when the
// scripted url has one.
func pathMatches(r *http.Request, url string) bool {
	if strings.Contains(url, "?") {
		return r.URL.RequestURI() == url
	}
	return r.URL.Path == url
}
