package passphrase

import "testing"

func TestSourceReadsEnvironmentOnce(t *testing.T) {
	t.Setenv(EnvVar, "correct horse")
	src := NewSource(EnvVar)
	first, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Setenv(EnvVar, "changed")
	second, err := src.Get()
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if first != "correct horse" || second != first {
		t.Fatalf("expected cached passphrase, got %q then %q", first, second)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv(EnvVar, "   ")
	if _, err := NewSource(EnvVar).Get(); err == nil {
		t.Fatalf("expected error for blank passphrase")
	}
}
