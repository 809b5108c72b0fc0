package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"imgup/internal/config"
	"imgup/internal/credentials"
)

// fakeImgur serves the handful of endpoints the CLI talks to.
type fakeImgur struct {
	mu           sync.Mutex
	requests     int
	uploads      int
	failUploads  map[int]bool
	refreshFails bool
	uploadAuth   []string
	uploadNames  []string
	tokenForms   []url.Values
	tokenAuth    []string
	deletes      []string
	deleteAuth   []string
}

func (f *fakeImgur) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/3/image":
		f.handleUpload(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/oauth2/token":
		f.handleToken(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/3/image/"):
		f.deletes = append(f.deletes, strings.TrimPrefix(r.URL.Path, "/3/image/"))
		f.deleteAuth = append(f.deleteAuth, r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, true, true)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeImgur) handleUpload(w http.ResponseWriter, r *http.Request) {
	f.uploads++
	n := f.uploads
	f.uploadAuth = append(f.uploadAuth, r.Header.Get("Authorization"))

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = io.Copy(io.Discard, file)
	_ = file.Close()
	f.uploadNames = append(f.uploadNames, header.Filename)

	if f.failUploads[n] {
		writeEnvelope(w, http.StatusInternalServerError, false, map[string]any{"error": "over capacity"})
		return
	}
	writeEnvelope(w, http.StatusOK, true, map[string]any{
		"id":         fmt.Sprintf("img%d", n),
		"link":       fmt.Sprintf("https://i.imgur.com/img%d.png", n),
		"deletehash": fmt.Sprintf("dh%d", n),
	})
}

func (f *fakeImgur) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.tokenForms = append(f.tokenForms, r.PostForm)
	f.tokenAuth = append(f.tokenAuth, r.Header.Get("Authorization"))

	w.Header().Set("Content-Type", "application/json")
	switch r.PostForm.Get("grant_type") {
	case "pin":
		if r.PostForm.Get("pin") != "good-pin" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Pin"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"pin-access","refresh_token":"pin-refresh","token_type":"bearer"}`))
	case "refresh_token":
		if f.refreshFails {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid refresh token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","token_type":"bearer"}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeImgur) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "success": success, "status": status})
}

type recordedSchedule struct {
	delay    time.Duration
	clientID string
	handles  []string
}

type fakeScheduler struct {
	calls []recordedSchedule
	err   error
}

func (f *fakeScheduler) Schedule(delay time.Duration, clientID string, handles []string) error {
	f.calls = append(f.calls, recordedSchedule{delay: delay, clientID: clientID, handles: handles})
	return f.err
}

type queuedPrompter struct {
	answers []string
}

func (p *queuedPrompter) next() (string, error) {
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *queuedPrompter) Line(string) (string, error)   { return p.next() }
func (p *queuedPrompter) Secret(string) (string, error) { return p.next() }

type cliHarness struct {
	t         *testing.T
	imgur     *fakeImgur
	server    *httptest.Server
	cfg       *config.Config
	scheduler *fakeScheduler
	prompter  *queuedPrompter
	stdin     string
	env       map[string]string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv(logLevelEnvKey, "")

	imgur := &fakeImgur{failUploads: map[int]bool{}}
	server := httptest.NewServer(imgur)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.APIURL = server.URL
	cfg.AuthURL = server.URL + "/oauth2"
	cfg.DataDir = t.TempDir()
	cfg.OpenBrowser = false

	return &cliHarness{
		t:         t,
		imgur:     imgur,
		server:    server,
		cfg:       &cfg,
		scheduler: &fakeScheduler{},
		prompter:  &queuedPrompter{},
	}
}

func (h *cliHarness) saveCredentials() credentials.Credentials {
	h.t.Helper()
	store, err := credentials.NewStore(h.cfg.CredentialsPath())
	if err != nil {
		h.t.Fatalf("new store: %v", err)
	}
	creds := credentials.Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}
	if err := store.Save(creds); err != nil {
		h.t.Fatalf("save credentials: %v", err)
	}
	return creds
}

func (h *cliHarness) loadCredentials() (credentials.Credentials, error) {
	store, err := credentials.NewStore(h.cfg.CredentialsPath())
	if err != nil {
		return credentials.Credentials{}, err
	}
	return store.Load()
}

func (h *cliHarness) images(names ...string) []string {
	h.t.Helper()
	dir := h.t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("fake image "+name), 0o644); err != nil {
			h.t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func (h *cliHarness) run(args ...string) (string, string, int) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	d := &deps{
		stdin:        strings.NewReader(h.stdin),
		stdout:       &stdout,
		stderr:       &stderr,
		prompter:     h.prompter,
		scheduler:    h.scheduler,
		probeTimeout: time.Second,
		getenv:       func(key string) string { return h.env[key] },
	}

	cmd := newRootCmd(h.cfg, d)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		for _, line := range formatCLIError(err) {
			stderr.WriteString(line + "\n")
		}
	}
	return stdout.String(), stderr.String(), exitCode(err)
}

func fileArgs(paths []string) []string {
	args := make([]string, 0, 2*len(paths))
	for _, path := range paths {
		args = append(args, "-f", path)
	}
	return args
}

func outputLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
