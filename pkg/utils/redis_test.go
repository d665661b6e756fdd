package utils

import "testing"

func TestSingleFlightReleaseScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the release script should be initialized.
	if singleFlightReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}
