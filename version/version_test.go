package version

import (
	"strings"
	"testing"
)

// withVersionVars temporarily sets version variables and restores them after the test.
func withVersionVars(t *testing.T, v, commit, date string, fn func()) {
	t.Helper()
	origVersion, origCommit, origDate := version, gitCommit, buildDate
	defer func() {
		version, gitCommit, buildDate = origVersion, origCommit, origDate
	}()
	version, gitCommit, buildDate = v, commit, date
	fn()
}

func TestGetVersion(t *testing.T) {
	if v := GetVersion(); v == "" {
		t.Error("GetVersion() returned empty string")
	}
}

func TestGetVersion_NonDev(t *testing.T) {
	withVersionVars(t, "1.0.0", "", "", func() {
		if v := GetVersion(); v != "1.0.0" {
			t.Errorf("Expected '1.0.0', got '%s'", v)
		}
	})
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	if !strings.Contains(info, "planweave version") {
		t.Errorf("GetVersionInfo() should contain 'planweave version', got: %s", info)
	}
}

func TestGetVersionInfo_WithLdflags(t *testing.T) {
	withVersionVars(t, "2.0.0", "def456", "2024-06-15", func() {
		info := GetVersionInfo()
		for _, want := range []string{"2.0.0", "def456", "2024-06-15"} {
			if !strings.Contains(info, want) {
				t.Errorf("Version info should contain '%s', got: %s", want, info)
			}
		}
	})
}

func TestGetBuildInfo(t *testing.T) {
	attrs := GetBuildInfo()
	if len(attrs) < 2 {
		t.Error("GetBuildInfo() should return at least version key-value pair")
	}
	if attrs[0] != "version" {
		t.Errorf("First attribute should be 'version', got: %v", attrs[0])
	}
}

func TestGetBuildInfo_WithLdflags(t *testing.T) {
	withVersionVars(t, "1.2.3", "abc123", "2024-01-01", func() {
		attrs := GetBuildInfo()
		attrMap := make(map[string]any)
		for i := 0; i < len(attrs); i += 2 {
			attrMap[attrs[i].(string)] = attrs[i+1]
		}

		expected := map[string]any{"version": "1.2.3", "commit": "abc123", "built": "2024-01-01"}
		for k, want := range expected {
			if got := attrMap[k]; got != want {
				t.Errorf("%s should be '%v', got: %v", k, want, got)
			}
		}
	})
}

func TestGetCommitFromBuildInfo(t *testing.T) {
	// Returns whatever the test binary's build info contains.
	_ = getCommitFromBuildInfo()
}

func TestIsDirtyFromBuildInfo(t *testing.T) {
	_ = isDirtyFromBuildInfo()
}
