package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_FullConfig(t *testing.T) {
	toml := `version = 2

[agent]
provider = "anthropic"
command = "claude"

[checks]
commands = ["go build ./...", "go test ./..."]

[prompts]
reviewer = "Review strictly against acceptance criteria."

[[worktree.provision.files]]
from = "/etc/thence/.env"
to = ".env"
required = false
mode = "copy"

[[worktree.provision.files]]
from = "/etc/thence/gitconfig"
to = ".gitconfig"
`
	path := writeTemp(t, toml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "agent.provider", cfg.Agent.Provider, "anthropic")
	assertEqual(t, "agent.command", cfg.Agent.Command, "claude")

	if len(cfg.Checks.Commands) != 2 || cfg.Checks.Commands[0] != "go build ./..." {
		t.Errorf("checks.commands = %v", cfg.Checks.Commands)
	}

	assertEqual(t, "prompts.reviewer", cfg.Prompts.Reviewer, "Review strictly against acceptance criteria.")

	files := cfg.Worktree.Provision.Files
	if len(files) != 2 {
		t.Fatalf("expected 2 provisioned files, got %d", len(files))
	}
	if files[0].IsRequired() {
		t.Error("expected first file required=false")
	}
	if files[0].EffectiveMode() != ProvisionCopy {
		t.Errorf("expected first file mode=copy, got %q", files[0].EffectiveMode())
	}
	if !files[1].IsRequired() {
		t.Error("expected second file to default required=true")
	}
	if files[1].EffectiveMode() != ProvisionSymlink {
		t.Errorf("expected second file to default mode=symlink, got %q", files[1].EffectiveMode())
	}
}

func TestLoad_MissingVersionFailsValidation(t *testing.T) {
	path := writeTemp(t, `[agent]
provider = "anthropic"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing/zero version")
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	path := writeTemp(t, "version = 1\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/thence.toml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTemp(t, "{{invalid toml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_PROVIDER", "expanded-provider")

	path := writeTemp(t, `version = 2

[agent]
provider = "${TEST_PROVIDER}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "agent.provider", cfg.Agent.Provider, "expanded-provider")
}

func TestLoad_EnvExpansionDefault(t *testing.T) {
	path := writeTemp(t, `version = 2

[agent]
provider = "${UNSET_PROVIDER:-fallback}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "agent.provider", cfg.Agent.Provider, "fallback")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeTemp(t, `version = 2
bogus_key = "should_fail"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WorktreeFileMissingFrom(t *testing.T) {
	path := writeTemp(t, `version = 2

[[worktree.provision.files]]
to = ".env"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing from")
	}
}

func TestLoad_WorktreeFileRejectsDotDot(t *testing.T) {
	path := writeTemp(t, `version = 2

[[worktree.provision.files]]
from = "/etc/thence/secret"
to = "../escape"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for \"..\" in to")
	}
	if !strings.Contains(err.Error(), "..") {
		t.Errorf("error should mention \"..\", got: %v", err)
	}
}

func TestLoad_WorktreeFileInvalidMode(t *testing.T) {
	path := writeTemp(t, `version = 2

[[worktree.provision.files]]
from = "/etc/thence/secret"
to = "secret"
mode = "hardlink"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "thence.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
