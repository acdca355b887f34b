package env

import "testing"

func TestFilterEnvDropsSecrets(t *testing.T) {
	in := []string{
		"PATH=/usr/bin",
		"ANTHROPIC_API_KEY=sk-test",
		"GITHUB_TOKEN=ghp-test",
		"DB_PASSWORD=hunter2",
		"AWS_CREDENTIAL_FILE=/x",
		"SOME_SECRET=y",
		"HOME=/root",
		"MY_CUSTOM_VAR=ok",
	}
	out := FilterEnv(in)
	want := map[string]bool{
		"PATH=/usr/bin": true, "HOME=/root": true, "MY_CUSTOM_VAR=ok": true,
	}
	if len(out) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(out), out)
	}
	for _, kv := range out {
		if !want[kv] {
			t.Fatalf("unexpected entry survived filtering: %q", kv)
		}
	}
}

func TestFilterEnvAllowlistOverridesSubstringLikeName(t *testing.T) {
	// LOGNAME contains no blocked substring but confirm allowlist entries
	// always pass regardless of ordering.
	out := FilterEnv([]string{"LOGNAME=bob"})
	if len(out) != 1 || out[0] != "LOGNAME=bob" {
		t.Fatalf("expected LOGNAME to pass through, got %v", out)
	}
}

func TestFilterEnvMalformedEntriesDropped(t *testing.T) {
	out := FilterEnv([]string{"NOTANASSIGNMENT", "PATH=/bin"})
	if len(out) != 1 {
		t.Fatalf("expected malformed entry dropped, got %v", out)
	}
}
