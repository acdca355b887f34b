package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"pipeline", "serve"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPathDefaults(t *testing.T) {
	t.Setenv("NEXUS_CONFIG", "")
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Fatalf("expected default config path %q, got %q", defaultConfigPath, got)
	}
}

func TestResolveConfigPathHonorsEnv(t *testing.T) {
	t.Setenv("NEXUS_CONFIG", "/etc/nexus/custom.yaml")
	if got := resolveConfigPath(""); got != "/etc/nexus/custom.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestResolveConfigPathHonorsExplicitFlag(t *testing.T) {
	t.Setenv("NEXUS_CONFIG", "/etc/nexus/custom.yaml")
	if got := resolveConfigPath("/tmp/explicit.yaml"); got != "/tmp/explicit.yaml" {
		t.Fatalf("expected explicit flag to win, got %q", got)
	}
}
