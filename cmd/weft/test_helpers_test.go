package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"weft/internal/config"
	"weft/internal/testsupport"
)

type rpcCall struct {
	Method        string
	Params        []json.RawMessage
	Authorization string
}

// fakeAccountService answers account RPCs with canned results keyed by method.
type fakeAccountService struct {
	mu      sync.Mutex
	calls   []rpcCall
	results map[string]string
}

func (f *fakeAccountService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{Method: req.Method, Params: req.Params, Authorization: r.Header.Get("Authorization")})
	result, ok := f.results[req.Method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{}`))
		return
	}
	_, _ = w.Write([]byte(`{"result":` + result + `}`))
}

func (f *fakeAccountService) lastCall(t *testing.T) rpcCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("expected an account service call")
	}
	return f.calls[len(f.calls)-1]
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	account    *fakeAccountService
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	account := &fakeAccountService{results: map[string]string{}}
	server := httptest.NewServer(account)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithAccountURL(server.URL))
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("WEFT_ACCOUNT_URL", "")
	t.Setenv("WEFT_TOKEN", "")
	t.Setenv("WEFT_TOKEN_SECRET", "")

	configPath := filepath.Join(homeDir, ".config", "weft", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, account: account}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
