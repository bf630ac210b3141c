package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/whisprlabs/whisprgate/internal/cluster"
	"github.com/whisprlabs/whisprgate/internal/config"
	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/middleware"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/repository"
	"github.com/whisprlabs/whisprgate/internal/service"
)

type testEnv struct {
	router *gin.Engine
	exec   *cluster.Executor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth: config.AuthConfig{RequireAPIKey: false, AdminKey: "admin"},
		Rate: config.RateLimitConfig{QPS: 1000, Burst: 1000},
	}

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	registry := cluster.NewMemoryRegistry()
	exec := cluster.NewExecutor(keys, registry, 16)

	journal, err := service.NewEventJournal(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(journal.Close)

	orch := service.NewOrchestrator(
		repository.NewMemoryLimitRepo(),
		repository.NewMemorySwapRepo(),
		exec, registry, journal,
	)
	if err := orch.Register(exec); err != nil {
		t.Fatalf("register: %v", err)
	}
	exec.Start(1)
	t.Cleanup(exec.Stop)

	userManager := service.NewUserManager(cfg)

	limitHandler := NewLimitHandler(orch)
	swapHandler := NewSwapHandler(orch)
	eventHandler := NewEventHandler(journal)
	clusterHandler := NewClusterHandler(exec, orch)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/v1/cluster/key", clusterHandler.PublicKey)

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, userManager))
	v1.Use(middleware.RateLimitMiddleware(userManager))
	{
		v1.POST("/limit", limitHandler.Store)
		v1.GET("/limit", limitHandler.Get)
		v1.POST("/swaps", swapHandler.Compute)
		v1.GET("/swaps", swapHandler.List)
		v1.GET("/swaps/:offset", swapHandler.Get)
		v1.GET("/events", eventHandler.List)
	}

	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	admin.POST("/comp-defs/compute-swap", clusterHandler.InitCompDef)

	return &testEnv{router: router, exec: exec}
}

func (env *testEnv) do(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// encryptPair produces [limit, amount] ciphertexts under one dispatch nonce.
func encryptPair(t *testing.T, exec *cluster.Executor, limit, amount uint64) (crypto.PublicKey, model.Nonce, []model.Ciphertext) {
	t.Helper()
	clientKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	cipher, err := clientKeys.SharedCipher(exec.ClusterPublicKey())
	if err != nil {
		t.Fatalf("shared cipher: %v", err)
	}
	nonce, err := crypto.RandomNonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	cts, err := cipher.Encrypt([]uint64{limit, amount}, nonce)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return clientKeys.PublicKey(), nonce, cts
}

func TestStoreAndGetLimit(t *testing.T) {
	env := newTestEnv(t)

	_, _, cts := encryptPair(t, env.exec, 100, 0)
	rec := env.do(t, http.MethodPost, "/v1/limit", map[string]string{"limit": cts[0].Hex()}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("store limit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/limit", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get limit: expected 200, got %d", rec.Code)
	}
	var cfg model.LimitConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if cfg.Limit != cts[0] {
		t.Fatalf("stored ciphertext mismatch")
	}
}

func TestGetLimitMissing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/limit", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStoreLimitRejectsBadHex(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/limit", map[string]string{"limit": "0xdead"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short ciphertext, got %d", rec.Code)
	}
}

func TestComputeSwapLifecycle(t *testing.T) {
	env := newTestEnv(t)

	pub, nonce, cts := encryptPair(t, env.exec, 100, 150)

	rec := env.do(t, http.MethodPost, "/v1/limit", map[string]string{"limit": cts[0].Hex()}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("store limit: %d", rec.Code)
	}

	payload := map[string]interface{}{
		"computation_offset": 42,
		"pub_key":            hexutil.Encode(pub.Bytes()),
		"nonce":              nonce.Hex(),
		"encrypted_amount":   cts[1].Hex(),
	}
	rec = env.do(t, http.MethodPost, "/v1/swaps", payload, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("dispatch: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.ComputeSwapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ComputationOffset != 42 {
		t.Fatalf("offset mismatch: %d", resp.ComputationOffset)
	}

	// Settlement is asynchronous; poll until the record leaves Computing.
	deadline := time.Now().Add(2 * time.Second)
	var state model.SwapState
	for {
		rec = env.do(t, http.MethodGet, "/v1/swaps/42", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get swap: %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if state.Status == model.SwapStatusComputed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("swap never settled, status %s", state.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = env.do(t, http.MethodGet, "/v1/events", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events: %d", rec.Code)
	}
	var events struct {
		Events []*model.EventRecord `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(events.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.Events))
	}
	if events.Events[0].Type != model.EventConfidentialSwapExecuted {
		t.Fatalf("unexpected event type %s", events.Events[0].Type)
	}
}

func TestComputeSwapWithoutLimit(t *testing.T) {
	env := newTestEnv(t)

	pub, nonce, cts := encryptPair(t, env.exec, 0, 10)
	payload := map[string]interface{}{
		"computation_offset": 7,
		"pub_key":            hexutil.Encode(pub.Bytes()),
		"nonce":              nonce.Hex(),
		"encrypted_amount":   cts[1].Hex(),
	}
	rec := env.do(t, http.MethodPost, "/v1/swaps", payload, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a stored limit, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestComputeSwapDuplicateOffset(t *testing.T) {
	env := newTestEnv(t)

	pub, nonce, cts := encryptPair(t, env.exec, 100, 50)
	rec := env.do(t, http.MethodPost, "/v1/limit", map[string]string{"limit": cts[0].Hex()}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("store limit: %d", rec.Code)
	}

	payload := map[string]interface{}{
		"computation_offset": 9,
		"pub_key":            hexutil.Encode(pub.Bytes()),
		"nonce":              nonce.Hex(),
		"encrypted_amount":   cts[1].Hex(),
	}
	if rec = env.do(t, http.MethodPost, "/v1/swaps", payload, nil); rec.Code != http.StatusAccepted {
		t.Fatalf("first dispatch: %d", rec.Code)
	}
	if rec = env.do(t, http.MethodPost, "/v1/swaps", payload, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate offset, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestComputeSwapRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]interface{}{
		"computation_offset": 1,
		"pub_key":            "not-hex",
		"nonce":              "0x00",
		"encrypted_amount":   "0x00",
	}
	rec := env.do(t, http.MethodPost, "/v1/swaps", payload, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClusterKeyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/cluster/key", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	raw, err := hexutil.Decode(resp["cluster_pub_key"])
	if err != nil || len(raw) != 32 {
		t.Fatalf("bad cluster key %q: %v", resp["cluster_pub_key"], err)
	}
}

func TestInitCompDefRequiresAdminKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/admin/comp-defs/compute-swap", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/admin/comp-defs/compute-swap", nil, map[string]string{
		middleware.HeaderAdminKey: "admin",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with admin key, got %d: %s", rec.Code, rec.Body.String())
	}
}
