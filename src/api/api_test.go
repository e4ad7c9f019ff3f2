package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/iliafrenkel/unbin/src/service"
	"github.com/iliafrenkel/unbin/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "5a8f7e2c-6c55-4b0e-9d3c-test-api-key"

var log = lgr.New(lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces)

// newTestServer returns a server backed by an empty memory store.
func newTestServer() *Server {
	return New(log, service.NewWithMemDB(), ServerOptions{
		Addr:    "localhost:3000",
		LogMode: "debug",
		APIKey:  testKey,
		Version: "test",
	})
}

var apiSrv *Server

// TestMain is a setup function for the test suite. It creates a new Server
// with options suitable for testing.
func TestMain(m *testing.M) {
	apiSrv = newTestServer()
	os.Exit(m.Run())
}

// do sends a request straight to the router and returns the recorder.
func do(srv *Server, method, target, key string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, target, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		r.Header.Set(APIKeyHeader, key)
	}
	srv.router.ServeHTTP(w, r)
	return w
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var m MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), "body: %s", w.Body.String())
	return m.Message
}

func listPastes(t *testing.T, srv *Server) []store.Paste {
	t.Helper()
	w := do(srv, "GET", "/pastes", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pastes []store.Paste
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pastes))
	return pastes
}

func TestGetAPIKey(t *testing.T) {
	t.Parallel()

	w := do(apiSrv, "GET", "/apikey", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp APIKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testKey, resp.APIKey)
	assert.Contains(t, w.Body.String(), `"apiKey"`)
}

func TestPing(t *testing.T) {
	t.Parallel()

	w := do(apiSrv, "GET", "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", message(t, w))
	assert.Equal(t, "test", w.Header().Get("App-Version"))
}

// TestGuard checks that every guarded endpoint rejects a missing or wrong
// key and doesn't touch the store.
func TestGuard(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	w := do(srv, "POST", "/create-paste", testKey, jsonBody(t, service.PasteRequest{Title: "keep", Text: "me"}))
	require.Equal(t, http.StatusOK, w.Code)
	before := listPastes(t, srv)
	require.Len(t, before, 1)
	id := before[0].ID

	routes := []struct {
		method, target string
		body           interface{}
	}{
		{"GET", "/pastes", nil},
		{"POST", "/create-paste", service.PasteRequest{Title: "t", Text: "x"}},
		{"PUT", "/update-paste/" + itoa(id), service.PasteRequest{Title: "t", Text: "x"}},
		{"DELETE", "/delete-paste/" + itoa(id), nil},
	}

	for _, rt := range routes {
		for _, key := range []string{"", "wrong", testKey + " ", strings.ToUpper(testKey)} {
			var body io.Reader
			if rt.body != nil {
				body = jsonBody(t, rt.body)
			}
			w := do(srv, rt.method, rt.target, key, body)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s with key [%s]", rt.method, rt.target, key)
			assert.Equal(t, msgUnauthorized, message(t, w))
		}
	}

	assert.Equal(t, before, listPastes(t, srv), "rejected requests must not change anything")
}

func TestGuardWithoutConfiguredKey(t *testing.T) {
	t.Parallel()

	srv := New(log, service.NewWithMemDB(), ServerOptions{})
	w := do(srv, "GET", "/pastes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndList(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	before := time.Now().Add(-time.Second)
	w := do(srv, "POST", "/create-paste", testKey, jsonBody(t, service.PasteRequest{Title: "T", Text: "hello"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, msgCreated, message(t, w))

	pastes := listPastes(t, srv)
	require.Len(t, pastes, 1)
	assert.NotZero(t, pastes[0].ID)
	assert.Equal(t, "T", pastes[0].Title)
	assert.Equal(t, "hello", pastes[0].Text)
	assert.True(t, pastes[0].Created().After(before), "fresh date expected, got [%s]", pastes[0].Date)
}

func TestCreateForm(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	form := url.Values{}
	form.Add("title", "form title")
	form.Add("text", "form text")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/create-paste", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(APIKeyHeader, testKey)
	srv.router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	pastes := listPastes(t, srv)
	require.Len(t, pastes, 1)
	assert.Equal(t, "form title", pastes[0].Title)
}

func TestCreateBadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"empty body", "", http.StatusBadRequest, "Text cannot be empty"},
		{"empty object", "{}", http.StatusBadRequest, "Text cannot be empty"},
		{"blank text", `{"title":"t","text":"  "}`, http.StatusBadRequest, "Text cannot be empty"},
		{"missing title", `{"text":"x"}`, http.StatusBadRequest, "Title cannot be empty"},
		{"blank title", `{"title":"\t","text":"x"}`, http.StatusBadRequest, "Title cannot be empty"},
		{"malformed", `{"title":`, http.StatusBadRequest, "Request body contains malformed JSON"},
		{"wrong type", `{"title":1,"text":"x"}`, http.StatusBadRequest, "Request body contains an invalid value for the"},
		{"two objects", `{"title":"t","text":"x"}{}`, http.StatusBadRequest, "Request body must only contain a single JSON object"},
	}

	srv := newTestServer()
	for _, tc := range tests {
		w := do(srv, "POST", "/create-paste", testKey, strings.NewReader(tc.body))
		assert.Equal(t, tc.code, w.Code, tc.name)
		assert.Contains(t, message(t, w), tc.msg, tc.name)
	}
	assert.Empty(t, listPastes(t, srv), "nothing should be persisted")
}

func TestCreateUnsupportedMedia(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/create-paste", strings.NewReader("title=t"))
	r.Header.Set("Content-Type", "text/plain")
	r.Header.Set(APIKeyHeader, testKey)
	apiSrv.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	w := do(srv, "POST", "/create-paste", testKey, jsonBody(t, service.PasteRequest{Title: "old", Text: "old"}))
	require.Equal(t, http.StatusOK, w.Code)
	orig := listPastes(t, srv)[0]

	w = do(srv, "PUT", "/update-paste/"+itoa(orig.ID), testKey, jsonBody(t, service.PasteRequest{Title: "new", Text: "new text"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Paste with ID "+itoa(orig.ID)+" has been updated", message(t, w))

	pastes := listPastes(t, srv)
	require.Len(t, pastes, 1)
	assert.Equal(t, orig.ID, pastes[0].ID)
	assert.Equal(t, "new", pastes[0].Title)
	assert.Equal(t, "new text", pastes[0].Text)
	assert.Equal(t, orig.Date, pastes[0].Date)
}

func TestUpdateBadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	w := do(srv, "POST", "/create-paste", testKey, jsonBody(t, service.PasteRequest{Title: "old", Text: "old"}))
	require.Equal(t, http.StatusOK, w.Code)
	id := listPastes(t, srv)[0].ID

	for _, body := range []string{"", `{"title":"t"}`, `{"text":"x"}`, `{"title":" ","text":"x"}`} {
		w := do(srv, "PUT", "/update-paste/"+itoa(id), testKey, strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Both title and text cannot be empty", message(t, w))
	}
	assert.Equal(t, "old", listPastes(t, srv)[0].Title)
}

func TestUpdateNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	w := do(srv, "PUT", "/update-paste/999", testKey, jsonBody(t, service.PasteRequest{Title: "t", Text: "x"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Paste with ID 999 not found", message(t, w))
	assert.Empty(t, listPastes(t, srv), "update must not create a paste")
}

func TestDeleteTwice(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	w := do(srv, "POST", "/create-paste", testKey, jsonBody(t, service.PasteRequest{Title: "t", Text: "x"}))
	require.Equal(t, http.StatusOK, w.Code)
	id := itoa(listPastes(t, srv)[0].ID)

	for i := 0; i < 2; i++ {
		w := do(srv, "DELETE", "/delete-paste/"+id, testKey, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Paste with ID "+id+" has been deleted", message(t, w))
	}
	assert.Empty(t, listPastes(t, srv))
}

func TestBadIDs(t *testing.T) {
	t.Parallel()

	w := do(apiSrv, "DELETE", "/delete-paste/abc", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(apiSrv, "DELETE", "/delete-paste/99999999999999999999", testKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ID is incorrect", message(t, w))
}

func TestNotFoundAndMethod(t *testing.T) {
	t.Parallel()

	w := do(apiSrv, "GET", "/nope", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", message(t, w))

	w = do(apiSrv, "POST", "/pastes", testKey, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	do(srv, "POST", "/create-paste", testKey, jsonBody(t, service.PasteRequest{Title: "t", Text: "x"}))
	do(srv, "GET", "/pastes", "wrong", nil)

	w := do(srv, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "unbin_pastes_created_total")
	assert.Contains(t, body, "unbin_unauthorized_total")
	assert.Contains(t, body, `route="/create-paste"`)
}

func TestHandlerCORS(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	h := apiSrv.Handler(&logs)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("OPTIONS", "/pastes", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	r.Header.Set("Access-Control-Request-Method", "GET")
	r.Header.Set("Access-Control-Request-Headers", APIKeyHeader)
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/apikey", nil)
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "/apikey")
}

func TestHandlerRecovers(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	srv.router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := httptest.NewRecorder()
	srv.Handler(io.Discard).ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
