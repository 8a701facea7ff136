package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/brief/internal/docservice"
	"github.com/starford/brief/internal/testutil"
)

var seed = map[string]string{
	"posts/hello.md":  "---\ntype: post\nid: 1\ntitle: Hello\npersonId: ada\n---\n# Hello\n\nWorld of gophers.\n\n## TL;DR\n\nGreetings.\n",
	"comments/one.md": "---\ntype: comment\npostId: 1\n---\nFirst!\n",
	"people/ada.md":   "---\ntype: person\nid: ada\nname: Ada\n---\n",
}

// testEnv sets up a seeded corpus, SQLite DB, service, and router for testing.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*docservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

// testEnvWithSSE also mounts sseHandler at /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*docservice.Service, http.Handler) {
	t.Helper()
	env := testutil.TestEnv(t, seed)
	svc := docservice.NewService(env.Store, env.DB, env.Loader, env.Briefcase, env.Catalog)
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents/posts/hello.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.Type != "post" || doc.GroupName != "posts" || doc.ID != "posts/hello" || doc.Title != "Hello" {
		t.Errorf("doc = %+v", doc)
	}
	if w.Header().Get("ETag") != `"`+doc.Checksum+`"` {
		t.Errorf("etag = %q", w.Header().Get("ETag"))
	}
	if len(doc.Sections) != 1 || doc.Sections[0].Key != "summary" {
		t.Errorf("sections = %+v", doc.Sections)
	}
	if len(doc.Inbound) != 1 || doc.Inbound[0].Source != "comments/one.md" {
		t.Errorf("inbound = %+v", doc.Inbound)
	}
}

func TestGetDocument_EncodedPath(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/documents/posts%2Fhello.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/documents/nope.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCreateDocument(t *testing.T) {
	_, router := testEnv(t, "")

	req := CreateDocumentRequest{Path: "comments/two.md", Content: "---\ntype: comment\npostId: 1\n---\nSecond.\n"}
	w := do(t, router, http.MethodPost, "/documents", req, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/relationships/comments/posts/hello.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("related status = %d", w.Code)
	}
	var rel RelatedResult
	_ = json.Unmarshal(w.Body.Bytes(), &rel)
	if len(rel.Models) != 2 {
		t.Errorf("comments = %+v", rel.Models)
	}

	// Second create should 409.
	w = do(t, router, http.MethodPost, "/documents", req, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateDocument_Rejected(t *testing.T) {
	_, router := testEnv(t, "")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing content", CreateDocumentRequest{Path: "x.md"}, http.StatusBadRequest},
		{"not markdown", CreateDocumentRequest{Path: "x.txt", Content: "---\ntype: post\n---\n"}, http.StatusBadRequest},
		{"untyped", CreateDocumentRequest{Path: "x.md", Content: "plain text\n"}, http.StatusUnprocessableEntity},
		{"unknown type", CreateDocumentRequest{Path: "x.md", Content: "---\ntype: widget\n---\n"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/documents", tt.body, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCreateDocument_InvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents/comments/one.md", nil, nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	update := UpdateDocumentRequest{Content: "---\ntype: comment\npostId: 1\n---\nEdited.\n"}
	w = do(t, router, http.MethodPut, "/documents/comments/one.md", update, map[string]string{"If-Match": `"stale"`})
	if w.Code != http.StatusConflict {
		t.Fatalf("stale update = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/documents/comments/one.md", update, map[string]string{"If-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == etag {
		t.Error("ETag unchanged after update")
	}
}

func TestUpdateWithWeakETag(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/documents/comments/one.md", nil, nil)
	weak := "W/" + w.Header().Get("ETag")

	update := UpdateDocumentRequest{Content: "---\ntype: comment\npostId: 1\n---\nWeak.\n"}
	w = do(t, router, http.MethodPut, "/documents/comments/one.md", update, map[string]string{"If-Match": weak})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateDocument_BodyTooLarge(t *testing.T) {
	_, router := testEnv(t, "")
	req := CreateDocumentRequest{Path: "posts/big.md", Content: strings.Repeat("x", maxDocumentBody)}
	w := do(t, router, http.MethodPost, "/documents", req, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	update := UpdateDocumentRequest{Content: "---\ntype: person\nid: ada\nname: Ada L.\n---\n"}
	w := do(t, router, http.MethodPut, "/documents/people/ada.md", update, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var doc DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.Data["name"] != "Ada L." {
		t.Errorf("data = %+v", doc.Data)
	}
}

func TestUpdateDocument_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/documents/nope.md", UpdateDocumentRequest{Content: "x"}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodDelete, "/documents/comments/one.md", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/documents/comments/one.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/documents/comments/one.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestMoveDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/documents/move", MoveDocumentRequest{From: "people/ada.md", To: "people/lovelace.md"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/relationships/author/posts/hello.md", nil, nil)
	var rel RelatedResult
	_ = json.Unmarshal(w.Body.Bytes(), &rel)
	if len(rel.Models) != 1 || rel.Models[0].Path != "people/lovelace.md" {
		t.Errorf("author after move = %+v", rel.Models)
	}

	w = do(t, router, http.MethodPost, "/documents/move", MoveDocumentRequest{From: "people/ada.md", To: "people/x.md"}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("move missing = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodPost, "/documents/move", MoveDocumentRequest{From: "people/lovelace.md"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("move without target = %d, want 400", w.Code)
	}
}

func TestListDocuments(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents?limit=2&sort=path", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Documents) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Documents[0].Path != "comments/one.md" {
		t.Errorf("first = %q", resp.Documents[0].Path)
	}

	w = do(t, router, http.MethodGet, "/documents?group=people", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Documents[0].Type != "person" {
		t.Errorf("people = %+v", resp)
	}
}

func TestListGroups(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/groups", nil, nil)
	var resp GroupListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Groups) != 3 || resp.Groups[2].Name != "posts" || resp.Groups[2].Count != 1 {
		t.Errorf("groups = %+v", resp.Groups)
	}
}

func TestRelated(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/relationships/author/posts/hello.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rel RelatedResult
	_ = json.Unmarshal(w.Body.Bytes(), &rel)
	if rel.Kind != "belongsTo" || len(rel.Models) != 1 || rel.Models[0].Path != "people/ada.md" {
		t.Errorf("rel = %+v", rel)
	}

	w = do(t, router, http.MethodGet, "/relationships/likes/posts/hello.md", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("undeclared = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=gophers", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "posts/hello.md" || resp.Results[0].Type != "post" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/graph", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 3 {
		t.Errorf("nodes = %+v", resp.Nodes)
	}
	// hello -> one (comments), one -> hello (post), hello -> ada (author)
	if len(resp.Links) != 3 {
		t.Errorf("links = %+v", resp.Links)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/schema", nil, nil)
	var resp SchemaResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Definitions) != 3 {
		t.Fatalf("definitions = %+v", resp.Definitions)
	}
	person := resp.Definitions[1]
	if person.Type != "person" || person.GroupName != "people" {
		t.Errorf("person = %+v", person)
	}
	post := resp.Definitions[2]
	if post.Relationships["comments"].ForeignKey != "postId" {
		t.Errorf("post relationships = %+v", post.Relationships)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	w := do(t, router, http.MethodGet, "/groups", nil, map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	w := do(t, router, http.MethodGet, "/groups", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	w := do(t, router, http.MethodGet, "/groups", nil, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnvWithSSE(t, false, "ignored", nil)
	w := do(t, router, http.MethodGet, "/groups", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE)
	w := do(t, router, http.MethodGet, "/events", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
