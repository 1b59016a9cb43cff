//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// hubProcess is a `frontdesk serve` process backed by the in-memory store.
type hubProcess struct {
	cmd     *exec.Cmd
	address string
	apiKey  string
	logFile string
}

// startHubProcess launches the hub and waits for it to become healthy.
func startHubProcess(t *testing.T) *hubProcess {
	t.Helper()
	requireFrontdesk(t)

	dir := t.TempDir()
	port := freePort(t)
	h := &hubProcess{
		address: fmt.Sprintf("127.0.0.1:%d", port),
		apiKey:  "e2e-binary-hub-key",
		logFile: filepath.Join(dir, "hub.log"),
	}

	cmd := exec.Command(frontdeskBin, "serve")
	cmd.Env = append(os.Environ(),
		"FRONTDESK_CONFIG_PATH="+filepath.Join(dir, "nonexistent.yaml"),
		"FRONTDESK_DB_PATH="+filepath.Join(dir, "hub-local.db"),
		fmt.Sprintf("FRONTDESK_PORT=%d", port),
		"FRONTDESK_BACKEND=memory",
		"FRONTDESK_API_KEY="+h.apiKey,
		"FRONTDESK_LOG_FORMAT=text",
	)

	lf, err := os.Create(h.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf
	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start frontdesk serve: %v", err)
	}
	h.cmd = cmd

	t.Cleanup(func() {
		h.stop()
		lf.Close()
		if t.Failed() {
			if data, err := os.ReadFile(h.logFile); err == nil {
				t.Logf("hub log:\n%s", data)
			}
		}
	})

	if err := h.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("hub not healthy: %v", err)
	}
	return h
}

func (h *hubProcess) stop() {
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Signal(os.Interrupt)
		_ = h.cmd.Wait()
	}
}

func (h *hubProcess) baseURL() string {
	return "http://" + h.address
}

func (h *hubProcess) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(h.baseURL() + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("hub not healthy after %s", timeout)
}

// rows reads a collection straight from the hub.
func (h *hubProcess) rows(t *testing.T, collection string) []map[string]any {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, h.baseURL()+"/rest/v1/"+collection+"?select=*", nil)
	req.Header.Set("apikey", h.apiKey)
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("read %s: %v", collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read %s: status %d", collection, resp.StatusCode)
	}
	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", collection, err)
	}
	return out
}

// deskCLI runs frontdesk commands against one device database.
type deskCLI struct {
	name string
	dir  string
	hub  *hubProcess
	user string
}

func newDeskCLI(t *testing.T, name string, hub *hubProcess) *deskCLI {
	t.Helper()
	requireFrontdesk(t)
	return &deskCLI{name: name, dir: t.TempDir(), hub: hub}
}

func (d *deskCLI) env() []string {
	return append(os.Environ(),
		"FRONTDESK_CONFIG_PATH="+filepath.Join(d.dir, "nonexistent.yaml"),
		"FRONTDESK_DB_PATH="+filepath.Join(d.dir, d.name+".db"),
		"FRONTDESK_BACKUP_DIR="+filepath.Join(d.dir, "backups"),
		"FRONTDESK_DEVICE_ID="+d.name,
		"FRONTDESK_REMOTE_URL="+d.hub.baseURL(),
		"FRONTDESK_REMOTE_API_KEY="+d.hub.apiKey,
		"FRONTDESK_TIME_ZONE=UTC",
		"FRONTDESK_LOG_LEVEL=warn",
		"FRONTDESK_USER="+d.user,
		"FRONTDESK_PASSWORD=s3cret",
	)
}

// run executes a command and returns stdout, failing the test on error.
func (d *deskCLI) run(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := d.exec(args...)
	if err != nil {
		t.Fatalf("%s: frontdesk %v: %v\nstderr: %s", d.name, args, err, stderr)
	}
	return out
}

func (d *deskCLI) exec(args ...string) (string, string, error) {
	cmd := exec.Command(frontdeskBin, args...)
	cmd.Env = d.env()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// runJSON executes a command with --json and decodes its output into v.
func (d *deskCLI) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := d.run(t, append([]string{"--json"}, args...)...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("%s: decode output of %v: %v\noutput: %s", d.name, args, err, out)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
