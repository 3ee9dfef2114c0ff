// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/svcpack/svcpack/internal/config"
	"github.com/svcpack/svcpack/internal/container"
	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/internal/pipeline"
	"github.com/svcpack/svcpack/internal/runtime"
	"github.com/svcpack/svcpack/internal/testutil"
	"github.com/svcpack/svcpack/pkg/descriptor"
	"github.com/svcpack/svcpack/pkg/manifest"
	"github.com/svcpack/svcpack/pkg/types"
)

type (
	staticConfig struct {
		cfg *config.Config
	}

	fakeEngine struct {
		mu       sync.Mutex
		exists   bool
		builds   []container.BuildOptions
		runs     []container.RunOptions
		exitCode types.ExitCode
	}

	harness struct {
		app     *App
		engine  *fakeEngine
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
		engines int
	}
)

var _ container.Engine = (*fakeEngine)(nil)

func (p staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	cfg := *p.cfg
	return &cfg, nil
}

func (e *fakeEngine) Name() string                                    { return "fake" }
func (e *fakeEngine) Available() bool                                 { return true }
func (e *fakeEngine) Version(context.Context) (string, error)         { return "0", nil }
func (e *fakeEngine) Remove(context.Context, string, bool) error      { return nil }
func (e *fakeEngine) RemoveImage(context.Context, string, bool) error { return nil }

func (e *fakeEngine) ImageExists(context.Context, string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exists, nil
}

func (e *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builds = append(e.builds, opts)
	e.exists = true
	return nil
}

func (e *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs = append(e.runs, opts)
	return &container.RunResult{Name: opts.Name, ExitCode: e.exitCode}, nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Log.Level = config.LogLevelError
	h := &harness{
		engine: &fakeEngine{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	h.app = NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		NewEngine: func(config.ContainerEngine) (container.Engine, error) {
			h.engines++
			return h.engine, nil
		},
		Stdout: h.stdout,
		Stderr: h.stderr,
	})
	return h
}

func (h *harness) execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// newService writes a complete service project and returns its directory.
func newService(t *testing.T, mutate func(*descriptor.Descriptor), files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, testutil.ServiceFiles())
	testutil.WriteFiles(t, dir, files)
	d := descriptor.Default("uploads")
	if mutate != nil {
		mutate(d)
	}
	testutil.WriteFiles(t, dir, map[string]string{descriptor.FileName: descriptor.GenerateCUE(d)})
	return dir
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: mutates package-level Version/Commit/BuildDate vars.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v1.2.3", "abc1234", "2026-06-15T10:00:00Z"
	if got, want := getVersionString(), "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got, want := getVersionString(), "dev (built from source)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}

func TestServiceName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"uploads":        "uploads",
		"Upload Service": "upload-service",
		"_private":       "private",
		"api.v2":         "api.v2",
		"...":            "service",
	}
	for in, want := range tests {
		if got := serviceName(in); got != want {
			t.Errorf("serviceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEnvFlags(t *testing.T) {
	t.Parallel()

	env, err := parseEnvFlags([]string{"A=1", "B=x=y", "EMPTY="})
	if err != nil {
		t.Fatal(err)
	}
	if env["A"] != "1" || env["B"] != "x=y" || env["EMPTY"] != "" || len(env) != 3 {
		t.Errorf("parseEnvFlags() = %v", env)
	}

	for _, bad := range []string{"NOEQUALS", "=value"} {
		if _, err := parseEnvFlags([]string{bad}); !errors.Is(err, ErrInvalidEnvFlag) {
			t.Errorf("parseEnvFlags(%q) error = %v, want ErrInvalidEnvFlag", bad, err)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"descriptor missing", fmt.Errorf("%w: ./svcpack.cue", descriptor.ErrNotFound), issue.DescriptorNotFoundId},
		{"engine missing", &container.EngineNotAvailableError{Engine: "podman"}, issue.ContainerEngineNotFoundId},
		{"port taken", &runtime.PortInUseError{Addr: ":8000"}, issue.PortInUseId},
		{"unsatisfiable", &manifest.RequirementError{Name: "fastapi", Err: manifest.ErrUnsatisfiable}, issue.ManifestInvalidId},
		{"directive", manifest.ErrUnsupportedDirective, issue.ManifestInvalidId},
		{"artifact", fmt.Errorf("app: %w", pipeline.ErrMissingArtifact), issue.ArtifactMissingId},
		{"other", errors.New("boom"), issue.BuildFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(tt.err, issue.BuildFailedId); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiagnoseKeepsExistingIssue(t *testing.T) {
	t.Parallel()

	first := diagnose(errors.New("bad"), issue.PortInUseId)
	again := diagnose(fmt.Errorf("wrapped: %w", first), issue.BuildFailedId)
	var svcErr *ServiceError
	if !errors.As(again, &svcErr) || svcErr.IssueID != issue.PortInUseId {
		t.Errorf("diagnose() = %v, want the original PortInUseId", again)
	}
	if diagnose(nil, issue.BuildFailedId) != nil {
		t.Error("diagnose(nil) != nil")
	}
}

func TestInitWritesParsableDescriptor(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	dir := filepath.Join(t.TempDir(), "My Service")
	if err := h.execute(t, "init", dir, "--port", "9000", "--app", "svc.api:app"); err != nil {
		t.Fatalf("init: %v", err)
	}

	d, err := descriptor.Load(dir)
	if err != nil {
		t.Fatalf("descriptor.Load() = %v", err)
	}
	if d.Name != "my-service" || d.Network.Port != 9000 || d.Entry.App != "svc.api:app" {
		t.Errorf("descriptor = name %q port %d app %q", d.Name, d.Network.Port, d.Entry.App)
	}

	err = h.execute(t, "init", dir)
	if !errors.Is(err, ErrDescriptorExists) {
		t.Errorf("second init error = %v, want ErrDescriptorExists", err)
	}
	if err := h.execute(t, "init", dir, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestPlanOutputFormats(t *testing.T) {
	t.Parallel()

	dir := newService(t, nil, nil)
	for format, want := range map[string]string{
		"text": "dependencies",
		"yaml": "image_key:",
		"json": `"image_key":`,
	} {
		h := newHarness(t)
		if err := h.execute(t, "plan", "-o", format, dir); err != nil {
			t.Fatalf("plan -o %s: %v", format, err)
		}
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("plan -o %s output missing %q:\n%s", format, want, h.stdout)
		}
	}

	h := newHarness(t)
	if err := h.execute(t, "plan", "-o", "xml", dir); !errors.Is(err, ErrInvalidOutputFormat) {
		t.Errorf("plan -o xml error = %v, want ErrInvalidOutputFormat", err)
	}
}

func TestRenderPrintsContainerfile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.execute(t, "--dir", newService(t, nil, nil), "render"); err != nil {
		t.Fatal(err)
	}
	out := h.stdout.String()
	for _, want := range []string{"FROM python:3.11-slim", "EXPOSE 8000/tcp", `"--port","8000"`} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	dir := newService(t, nil, nil)
	if err := h.execute(t, "build", dir); err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(h.engine.builds) != 1 {
		t.Fatalf("engine builds = %d, want 1", len(h.engine.builds))
	}
	tag := h.engine.builds[0].Tag
	if !strings.HasPrefix(tag, "svcpack/uploads:") {
		t.Errorf("tag = %q, want svcpack/uploads:<key>", tag)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != tag {
		t.Errorf("stdout = %q, want the tag %q", got, tag)
	}

	// The image now exists, so a second build is a no-op.
	if err := h.execute(t, "build", dir); err != nil {
		t.Fatal(err)
	}
	if len(h.engine.builds) != 1 {
		t.Errorf("engine builds after cached build = %d, want 1", len(h.engine.builds))
	}
	if err := h.execute(t, "build", "--force", dir); err != nil {
		t.Fatal(err)
	}
	if len(h.engine.builds) != 2 {
		t.Errorf("engine builds after --force = %d, want 2", len(h.engine.builds))
	}
}

func TestUnsatisfiableManifestNeverReachesEngine(t *testing.T) {
	t.Parallel()

	dir := newService(t, nil, map[string]string{"requirements.txt": "fastapi>=0.110,<0.100\n"})
	for _, args := range [][]string{{"build", dir}, {"run", dir}, {"validate", dir}} {
		h := newHarness(t)
		err := h.execute(t, args...)
		if !errors.Is(err, manifest.ErrUnsatisfiable) {
			t.Errorf("%s error = %v, want ErrUnsatisfiable", args[0], err)
		}
		var svcErr *ServiceError
		if !errors.As(err, &svcErr) || svcErr.IssueID != issue.ManifestInvalidId {
			t.Errorf("%s error = %v, want ManifestInvalidId", args[0], err)
		}
		if h.engines != 0 {
			t.Errorf("%s resolved an engine %d time(s)", args[0], h.engines)
		}
	}
}

func TestRunPropagatesExitCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.exitCode = 3
	err := h.execute(t, "run", "--host-ip", "127.0.0.1", "--host-port", freePort(t), "-e", "DEBUG=1", newService(t, nil, nil))

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("run error = %v, want *ExitError", err)
	}
	if exitErr.Code != 3 || exitErr.Err != nil {
		t.Errorf("ExitError = {%d, %v}, want silent exit 3", exitErr.Code, exitErr.Err)
	}
	if len(h.engine.runs) != 1 || h.engine.runs[0].Env["DEBUG"] != "1" {
		t.Errorf("engine runs = %+v, want one run with DEBUG=1", h.engine.runs)
	}

	var buf bytes.Buffer
	if !h.app.renderError(&buf, err) || buf.Len() != 0 {
		t.Errorf("silent exit wrote %q", buf.String())
	}
}

func TestRunPortInUse(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	port := fmt.Sprint(ln.Addr().(*net.TCPAddr).Port)

	h := newHarness(t)
	err = h.execute(t, "run", "--host-ip", "127.0.0.1", "--host-port", port, newService(t, nil, nil))

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code == 0 {
		t.Fatalf("run error = %v, want non-zero *ExitError", err)
	}
	if !errors.Is(err, runtime.ErrPortInUse) {
		t.Errorf("run error = %v, want ErrPortInUse", err)
	}
	if len(h.engine.runs) != 0 {
		t.Errorf("engine ran %d container(s) on an occupied port", len(h.engine.runs))
	}

	var buf bytes.Buffer
	h.app.renderError(&buf, err)
	if !strings.Contains(buf.String(), "Error:") || !strings.Contains(buf.String(), "--host-port") {
		t.Errorf("handleError output = %q, want the actionable error", buf.String())
	}
}

func TestRunNoBuildRequiresImage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.execute(t, "run", "--no-build", newService(t, nil, nil))
	if !errors.Is(err, ErrImageNotBuilt) {
		t.Errorf("run --no-build error = %v, want ErrImageNotBuilt", err)
	}
	if len(h.engine.builds) != 0 || len(h.engine.runs) != 0 {
		t.Error("run --no-build called the engine's build or run")
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "svcpack", "config.cue")
	h := newHarness(t)
	h.app.Config = config.NewProvider()

	if err := h.execute(t, "--config", cfgPath, "config", "path"); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != cfgPath {
		t.Errorf("config path = %q, want %q", got, cfgPath)
	}

	if err := h.execute(t, "--config", cfgPath, "config", "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config init did not write %s: %v", cfgPath, err)
	}

	h.stdout.Reset()
	if err := h.execute(t, "--config", cfgPath, "config", "show"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{cfgPath, "container_engine", "podman", "max_attempts"} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, h.stdout)
		}
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return fmt.Sprint(port)
}
