package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAPI is an OpenAI-compatible test server
type fakeAPI struct {
	mu sync.Mutex

	// failModels answer with a 500 error
	failModels map[string]bool
	// chatReply is returned for every successful completion
	chatReply string
	// failEmbeddings makes /embeddings fail
	failEmbeddings bool
	dims           int

	chatModels  []string
	chatBodies  []chatRequest
	authHeaders []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{failModels: map[string]bool{}, chatReply: "fake answer", dims: 4}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.authHeaders = append(a.authHeaders, r.Header.Get("Authorization"))
	a.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		a.embeddings(w, r)
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		a.chat(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (a *fakeAPI) embeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	fail := a.failEmbeddings
	a.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"embedding backend down","type":"server_error"}}`))
		return
	}

	type item struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	// reversed order checks that the client sorts by index
	for i := range req.Input {
		vec := make([]float32, a.dims)
		vec[len(req.Input[i])%a.dims] = 1
		data[len(req.Input)-1-i] = item{Index: i, Embedding: vec}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data, "model": req.Model})
}

func (a *fakeAPI) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	a.chatModels = append(a.chatModels, req.Model)
	a.chatBodies = append(a.chatBodies, req)
	fail := a.failModels[req.Model]
	reply := a.chatReply
	a.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": "  " + reply + "  "}},
		},
	})
}

func (a *fakeAPI) models() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.chatModels...)
}

func (a *fakeAPI) lastChat() chatRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chatBodies[len(a.chatBodies)-1]
}

// configure mutates server behaviour under the lock
func (a *fakeAPI) configure(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}
