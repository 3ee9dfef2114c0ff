// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.ContainerEngine != ContainerEnginePodman {
		t.Errorf("ContainerEngine = %q, want podman", cfg.ContainerEngine)
	}
	if cfg.ImagePrefix != "svcpack" {
		t.Errorf("ImagePrefix = %q, want svcpack", cfg.ImagePrefix)
	}
	if cfg.Build.MaxAttempts != 3 {
		t.Errorf("Build.MaxAttempts = %d, want 3", cfg.Build.MaxAttempts)
	}
	if cfg.Run.HostPort != 0 {
		t.Errorf("Run.HostPort = %d, want 0 (declared port)", cfg.Run.HostPort)
	}
	if cfg.Log.Level != LogLevelInfo || cfg.Log.Format != LogFormatText {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}

	xdg := t.TempDir()
	t.Cleanup(testutil.MustSetenv(t, "XDG_CONFIG_HOME", xdg))

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(xdg, AppName); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}

	home := t.TempDir()
	t.Cleanup(testutil.MustSetenv(t, "XDG_CONFIG_HOME", ""))
	t.Cleanup(testutil.SetHomeDir(t, home))
	got, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(home, ".config", AppName); got != want {
		t.Errorf("ConfigDir() without XDG = %q, want %q", got, want)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	got, err := ConfigDir()
	if err != nil || got != dir {
		t.Errorf("ConfigDir() = %q, %v, want %q", got, err, dir)
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadWithPath() = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
container_engine: "docker"
build: max_attempts: 5
run: {
	host_port:    18000
	stop_timeout: "3s"
}
log: format: "json"
`)

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if want := filepath.Join(dir, "config.cue"); path != want {
		t.Errorf("resolved path = %q, want %q", path, want)
	}

	want := DefaultConfig()
	want.ContainerEngine = ContainerEngineDocker
	want.Build.MaxAttempts = 5
	want.Run.HostPort = 18000
	want.Run.StopTimeout = 3 * time.Second
	want.Log.Format = LogFormatJSON
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("LoadWithPath() = %+v, want %+v", cfg, want)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `build: max_attempts: 5`)
	t.Cleanup(testutil.MustSetenv(t, "SVCPACK_BUILD_MAX_ATTEMPTS", "7"))
	t.Cleanup(testutil.MustSetenv(t, "SVCPACK_CONTAINER_ENGINE", "docker"))

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.MaxAttempts != 7 {
		t.Errorf("Build.MaxAttempts = %d, want 7 from environment", cfg.Build.MaxAttempts)
	}
	if cfg.ContainerEngine != ContainerEngineDocker {
		t.Errorf("ContainerEngine = %q, want docker from environment", cfg.ContainerEngine)
	}
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Cleanup(testutil.MustSetenv(t, "SVCPACK_LOG_LEVEL", "loud"))

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, ErrInvalidLogLevel) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig and ErrInvalidLogLevel", err)
	}
}

func TestLoad_CustomPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.cue")
	if err := os.WriteFile(path, []byte(`image_prefix: "registry.local/team"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := LoadWithPath(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if resolved != path || cfg.ImagePrefix != "registry.local/team" {
		t.Errorf("LoadWithPath() = %q from %q, want registry.local/team from %q", cfg.ImagePrefix, resolved, path)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		explicit bool
		wantOp   string
	}{
		{name: "missing explicit file", explicit: true, wantOp: "load configuration"},
		{name: "invalid CUE syntax", content: `container_engine: "docker`, wantOp: "load configuration"},
		{name: "unknown engine", content: `container_engine: "lxc"`, wantOp: "load configuration"},
		{name: "unknown field", content: `engine: "docker"`, wantOp: "load configuration"},
		{name: "attempts out of range", content: `build: max_attempts: 0`, wantOp: "load configuration"},
		{name: "port out of range", content: `run: host_port: 70000`, wantOp: "load configuration"},
		{name: "compound duration", content: `run: stop_timeout: "1m30s"`, wantOp: "load configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			opts := LoadOptions{ConfigDirPath: dir}
			if tt.explicit {
				opts = LoadOptions{ConfigFilePath: filepath.Join(dir, "absent.cue")}
			} else {
				writeConfig(t, dir, tt.content)
			}

			_, err := NewProvider().Load(context.Background(), opts)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("Load() error = %T, want *issue.ActionableError", err)
			}
			if ae.Operation != tt.wantOp {
				t.Errorf("Operation = %q, want %q", ae.Operation, tt.wantOp)
			}
			if !ae.HasSuggestions() {
				t.Error("error carries no suggestions")
			}
			if tt.explicit && !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("missing file error = %v, want fs.ErrNotExist", err)
			}
		})
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := ConfigFilePath(LoadOptions{ConfigDirPath: filepath.Join(dir, "nested")})
	if err != nil {
		t.Fatal(err)
	}

	created, err := CreateDefaultConfig(path)
	if err != nil || !created {
		t.Fatalf("CreateDefaultConfig() = %v, %v, want true, nil", created, err)
	}

	// The generated file must satisfy the schema and reproduce the defaults.
	cfg, resolved, err := LoadWithPath(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("loading generated config: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("generated config = %+v, want defaults", cfg)
	}

	if err := os.WriteFile(path, []byte(`log: level: "debug"`), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err = CreateDefaultConfig(path)
	if err != nil || created {
		t.Fatalf("second CreateDefaultConfig() = %v, %v, want false, nil", created, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "debug") {
		t.Error("existing config file was overwritten")
	}
}

func TestGenerateCUE(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Run.StopTimeout = 1500 * time.Millisecond
	cfg.Run.HostPort = 9000

	out := GenerateCUE(cfg)
	for _, want := range []string{
		`container_engine: "podman"`,
		`stop_timeout: "1500ms"`,
		`host_port:    9000`,
		`format: "text"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateCUE() missing %q:\n%s", want, out)
		}
	}
	if _, err := decodeConfig([]byte(out), "generated.cue"); err != nil {
		t.Errorf("generated CUE does not satisfy schema: %v", err)
	}
}

func TestLoadOptionsValidate(t *testing.T) {
	t.Parallel()

	if err := (LoadOptions{}).Validate(); err != nil {
		t.Errorf("empty options: %v", err)
	}
	err := LoadOptions{ConfigFilePath: "  ", ConfigDirPath: "\t"}.Validate()
	var loErr *InvalidLoadOptionsError
	if !errors.As(err, &loErr) || len(loErr.Fields) != 2 {
		t.Fatalf("Validate() = %v, want two blank fields", err)
	}
	if !errors.Is(err, ErrInvalidLoadOptions) {
		t.Error("error does not wrap ErrInvalidLoadOptions")
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	testutil.WriteFiles(t, dir, map[string]string{ConfigFileName + "." + ConfigFileExt: content})
}
