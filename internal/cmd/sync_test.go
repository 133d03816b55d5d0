package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSyncDirectWithoutDaemon(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	mustCreateIssue(t, store, "Sync me", nil)

	cmd := newSyncCmd(NewTestProvider(app))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if !strings.Contains(out.String(), "Synced") {
		t.Errorf("output = %q", out.String())
	}
	// Outside a git repo the cycle stops after the export.
	data, err := os.ReadFile(app.WS.InterchangePath())
	if err != nil {
		t.Fatalf("interchange file missing: %v", err)
	}
	if !strings.Contains(string(data), "Sync me") {
		t.Errorf("export missing issue: %s", data)
	}
}

func TestSyncFallsBackWhenDaemonUnreachable(t *testing.T) {
	app, store := setupTestApp(t)
	app.NoDaemon = false
	errOut := app.Err.(*bytes.Buffer)
	mustCreateIssue(t, store, "Fallback", nil)

	cmd := newSyncCmd(NewTestProvider(app))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if !strings.Contains(errOut.String(), "Daemon not running; syncing directly") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if _, err := os.Stat(app.WS.InterchangePath()); err != nil {
		t.Fatalf("interchange file missing: %v", err)
	}
}
