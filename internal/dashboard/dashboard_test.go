package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/landbot/landbot/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	return r
}

func TestHandleJSON_ReturnsCurrentSnapshot(t *testing.T) {
	s := New("acme/widgets")
	s.Update([]snapshot.Record{{Num: 1, State: "tested"}}, "2026-01-02T03:04:05Z")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	newRouter(s).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"num": 1`)
}

func TestHandleHTML_RendersTable(t *testing.T) {
	s := New("acme/widgets")
	s.Update([]snapshot.Record{{Num: 3, Title: "fix bug", State: "bad"}}, "now")

	req := httptest.NewRequest(http.MethodGet, "/status.html", nil)
	rr := httptest.NewRecorder()
	newRouter(s).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fix bug")
	assert.Contains(t, rr.Body.String(), "#dc3545")
}

func TestUpdate_IsSafeUnderConcurrentReads(t *testing.T) {
	s := New("acme/widgets")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Update([]snapshot.Record{{Num: i}}, "now")
		}
		close(done)
	}()

	router := newRouter(s)
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	<-done
}
