// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
	"github.com/parley-ops/parley/lib/testutil"
)

func TestCaptureHeader_DerivedFromEvents(t *testing.T) {
	t.Parallel()

	header := captureHeader("run-7", supportRunEvents())
	if header.RunID != "run-7" {
		t.Errorf("RunID = %q, want run-7", header.RunID)
	}
	if header.ConversationID != "support-7" {
		t.Errorf("ConversationID = %q, want support-7", header.ConversationID)
	}
	if header.WorkflowKey != "refund-flow" {
		t.Errorf("WorkflowKey = %q, want refund-flow", header.WorkflowKey)
	}
	if header.SchemaVersion != envelope.SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", header.SchemaVersion, envelope.SchemaVersion)
	}
	if header.CapturedAt == "" {
		t.Error("CapturedAt should be stamped")
	}
}

func TestCaptureHeader_NoWorkflow(t *testing.T) {
	t.Parallel()

	events := supportRunEvents()
	for _, event := range events {
		event.Workflow = nil
	}
	header := captureHeader("run-7", events)
	if header.WorkflowKey != "" {
		t.Errorf("WorkflowKey = %q, want empty", header.WorkflowKey)
	}
	if header.ConversationID != "support-7" {
		t.Errorf("ConversationID = %q, want support-7", header.ConversationID)
	}
}

func TestCheckRecipients(t *testing.T) {
	t.Parallel()

	if err := checkRecipients(nil); err != nil {
		t.Errorf("empty recipient list should pass, got %v", err)
	}
	if err := checkRecipients([]string{"age1qxyexample"}); err != nil {
		t.Errorf("age1 key should pass, got %v", err)
	}

	err := checkRecipients([]string{"AGE-SECRET-KEY-1EXAMPLE"})
	if err == nil {
		t.Fatal("a private key pasted as a recipient must be rejected")
	}
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryValidation {
		t.Errorf("error = %v, want a validation ToolError", err)
	}
	if !strings.Contains(err.Error(), "keygen") {
		t.Errorf("error %q should point at keygen", err)
	}
}

func TestRefuseOverwrite(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	missing := filepath.Join(tempDir, "absent.plycap")
	if err := refuseOverwrite(missing, false); err != nil {
		t.Errorf("missing file should not conflict, got %v", err)
	}

	existing := filepath.Join(tempDir, "present.plycap")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	err := refuseOverwrite(existing, false)
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryConflict {
		t.Errorf("error = %v, want a conflict ToolError", err)
	}

	if err := refuseOverwrite(existing, true); err != nil {
		t.Errorf("--force should bypass the conflict, got %v", err)
	}
}

func TestCaptureCommand_RequiresRun(t *testing.T) {
	t.Parallel()

	err := CaptureCommand().Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error without --run")
	}
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryValidation {
		t.Errorf("error = %v, want a validation ToolError", err)
	}
	if !strings.Contains(err.Error(), "--run") {
		t.Errorf("error %q should name --run", err)
	}
}

func TestCaptureCommand_UnknownSubcommand(t *testing.T) {
	t.Parallel()

	err := CaptureCommand().Execute(context.Background(), []string{"sela"})
	if err == nil {
		t.Fatal("expected an unknown command error")
	}
	if !strings.Contains(err.Error(), "seal") {
		t.Errorf("error %q should suggest seal", err)
	}
}

func TestCaptureKeygen(t *testing.T) {
	ctx := context.Background()
	identityPath := filepath.Join(t.TempDir(), "identity.txt")

	output := testutil.CaptureStdout(t, func() {
		if err := captureKeygenCommand().Execute(ctx, []string{"--output", identityPath}); err != nil {
			t.Errorf("keygen failed: %v", err)
		}
	})
	publicKey := strings.TrimSpace(output)
	if !strings.HasPrefix(publicKey, "age1") {
		t.Fatalf("stdout = %q, want an age1 public key", output)
	}

	info, err := os.Stat(identityPath)
	if err != nil {
		t.Fatalf("identity file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("identity file mode = %o, want 0600", info.Mode().Perm())
	}

	content, err := os.ReadFile(identityPath)
	if err != nil {
		t.Fatalf("reading identity file: %v", err)
	}
	if !strings.Contains(string(content), "AGE-SECRET-KEY-1") {
		t.Error("identity file is missing the private key")
	}
	if !strings.Contains(string(content), "# public key: "+publicKey) {
		t.Error("identity file is missing the public key comment")
	}

	// The written file must load back as a usable identity.
	if _, err := ledger.LoadIdentities(identityPath); err != nil {
		t.Errorf("identity file does not parse: %v", err)
	}

	// A second keygen must not clobber the key.
	err = captureKeygenCommand().Execute(ctx, []string{"--output", identityPath})
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryConflict {
		t.Errorf("overwrite error = %v, want a conflict ToolError", err)
	}
}

func TestCaptureSealUnsealRoundTrip(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()

	identityPath := filepath.Join(tempDir, "identity.txt")
	publicKey := strings.TrimSpace(testutil.CaptureStdout(t, func() {
		if err := captureKeygenCommand().Execute(ctx, []string{"--output", identityPath}); err != nil {
			t.Fatalf("keygen failed: %v", err)
		}
	}))

	plain := filepath.Join(tempDir, "run.plycap")
	writeTestCapture(t, plain, supportRunEvents())

	sealed := filepath.Join(tempDir, "shared.plycap.age")
	testutil.CaptureStdout(t, func() {
		if err := captureSealCommand().Execute(ctx, []string{plain, "--seal-to", publicKey, "--output", sealed}); err != nil {
			t.Fatalf("seal failed: %v", err)
		}
	})
	if got, err := isSealedCapture(sealed); err != nil || !got {
		t.Fatalf("sealed output is not an age stream (sealed=%v, err=%v)", got, err)
	}

	// Default unseal output strips the .age suffix.
	testutil.CaptureStdout(t, func() {
		if err := captureUnsealCommand().Execute(ctx, []string{sealed, "--identity", identityPath}); err != nil {
			t.Fatalf("unseal failed: %v", err)
		}
	})

	header, events, err := ledger.ReadCaptureFile(filepath.Join(tempDir, "shared.plycap"))
	if err != nil {
		t.Fatalf("reading unsealed capture: %v", err)
	}
	if header.RunID != "run-7" {
		t.Errorf("header.RunID = %q, want run-7", header.RunID)
	}
	if len(events) != len(supportRunEvents()) {
		t.Errorf("len(events) = %d, want %d", len(events), len(supportRunEvents()))
	}
}

func TestCaptureSeal_RequiresRecipients(t *testing.T) {
	t.Setenv("PARLEY_CONFIG", "")

	plain := filepath.Join(t.TempDir(), "run.plycap")
	writeTestCapture(t, plain, supportRunEvents())

	err := captureSealCommand().Execute(context.Background(), []string{plain})
	if err == nil {
		t.Fatal("expected an error without recipients")
	}
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryValidation {
		t.Errorf("error = %v, want a validation ToolError", err)
	}
	if !strings.Contains(err.Error(), "--seal-to") {
		t.Errorf("error %q should point at --seal-to", err)
	}
}

func TestCaptureUnseal_NeedsDerivableOutput(t *testing.T) {
	t.Parallel()

	err := captureUnsealCommand().Execute(context.Background(),
		[]string{"noext-capture", "--identity", "id.txt"})
	if err == nil {
		t.Fatal("expected an error for an underivable output name")
	}
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryValidation {
		t.Errorf("error = %v, want a validation ToolError", err)
	}
	if !strings.Contains(err.Error(), "--output") {
		t.Errorf("error %q should point at --output", err)
	}
}

func TestCaptureInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.plycap")
	writeTestCapture(t, path, supportRunEvents())

	output := testutil.CaptureStdout(t, func() {
		if err := captureInfoCommand().Execute(context.Background(), []string{path}); err != nil {
			t.Errorf("info failed: %v", err)
		}
	})
	for _, want := range []string{"run-7", "support-7", "refund-flow", "8"} {
		if !strings.Contains(output, want) {
			t.Errorf("info output missing %q:\n%s", want, output)
		}
	}
}

func TestCaptureInfo_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.plycap")
	writeTestCapture(t, path, supportRunEvents())

	output := testutil.CaptureStdout(t, func() {
		if err := captureInfoCommand().Execute(context.Background(), []string{path, "--json"}); err != nil {
			t.Errorf("info failed: %v", err)
		}
	})

	var info captureInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, output)
	}
	if info.EventCount != 8 {
		t.Errorf("event_count = %d, want 8", info.EventCount)
	}
	if info.WorkflowKey != "refund-flow" {
		t.Errorf("workflow_key = %q, want refund-flow", info.WorkflowKey)
	}
}

func TestDefaultIdentityPath_XDGOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	want := filepath.Join("/tmp/xdg-test", "parley", "identity.txt")
	if got := defaultIdentityPath(); got != want {
		t.Errorf("defaultIdentityPath() = %q, want %q", got, want)
	}
}
