package middleware

import "testing"

func TestValidateObjectKey(t *testing.T) {
	valid := []string{
		"cases/c1/ref.jpg",
		"cases/c1/cctv.mp4",
		"evidence_2026-03-01.mp4",
	}
	for _, key := range valid {
		if err := ValidateObjectKey(key); err != nil {
			t.Fatalf("key %q should be valid: %v", key, err)
		}
	}

	invalid := []string{
		"",
		"../etc/passwd",
		"cases/../../secret",
		"/absolute/key.jpg",
		"key$(rm -rf)",
		"key`id`",
		"key;ls",
		"key\nnewline",
		"key\\back",
	}
	for _, key := range invalid {
		if err := ValidateObjectKey(key); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestValidateStatusFilter(t *testing.T) {
	for _, ok := range []string{"PENDING", "ANALYZING", "SOLVED", "solved"} {
		if err := ValidateStatusFilter(ok); err != nil {
			t.Fatalf("status %q should be valid: %v", ok, err)
		}
	}
	if err := ValidateStatusFilter("DONE"); err == nil {
		t.Fatal("unknown status should be rejected")
	}
}
