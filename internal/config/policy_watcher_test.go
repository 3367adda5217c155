package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// createTempPolicyFile creates a temporary policy file with the given content
func createTempPolicyFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("failed to create temp policy file: %v", err)
	}
	return tmpFile
}

func policyFor(name string, level int) string {
	return "schema_version: v1\ncommands:\n  - name: " + name + "\n    access_level: " + strconv.Itoa(level) + "\n"
}

func startWatcher(t *testing.T, path string, debounce int, callback PolicyCallback) *PolicyWatcher {
	t.Helper()

	watcher, err := NewPolicyWatcher(PolicyWatcherConfig{
		FilePath:       path,
		DebounceMillis: debounce,
	}, callback)
	if err != nil {
		t.Fatalf("NewPolicyWatcher failed: %v", err)
	}

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = watcher.Stop(ctx)
	})
	return watcher
}

// TestPolicyWatcherStartLoadsInitialPolicy verifies that Start() applies
// the policy before returning.
func TestPolicyWatcherStartLoadsInitialPolicy(t *testing.T) {
	tmpFile := createTempPolicyFile(t, policyFor("banuser", 10))

	var received *PolicyFile
	startWatcher(t, tmpFile, 100, func(policy *PolicyFile) error {
		received = policy
		return nil
	})

	if received == nil {
		t.Fatal("callback was not called on Start")
	}
	if len(received.Commands) != 1 || received.Commands[0].Name != "banuser" {
		t.Errorf("unexpected initial policy: %+v", received.Commands)
	}
}

// TestPolicyWatcherDetectsFileChange verifies that edits are applied.
func TestPolicyWatcherDetectsFileChange(t *testing.T) {
	tmpFile := createTempPolicyFile(t, policyFor("banuser", 10))

	var callCount atomic.Int32
	var mu sync.Mutex
	var last *PolicyFile

	startWatcher(t, tmpFile, 100, func(policy *PolicyFile) error {
		mu.Lock()
		last = policy
		mu.Unlock()
		callCount.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte(policyFor("banuser", 3)), 0600); err != nil {
		t.Fatalf("failed to modify policy file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if callCount.Load() != 2 {
		t.Errorf("expected 2 callbacks after file change, got %d", callCount.Load())
	}

	mu.Lock()
	defer mu.Unlock()
	if last == nil || *last.Commands[0].AccessLevel != 3 {
		t.Errorf("expected access_level 3 after reload, got %+v", last)
	}
}

// TestPolicyWatcherDebouncing verifies that rapid writes cause one reload.
func TestPolicyWatcherDebouncing(t *testing.T) {
	tmpFile := createTempPolicyFile(t, policyFor("banuser", 10))

	var callCount atomic.Int32
	startWatcher(t, tmpFile, 200, func(*PolicyFile) error {
		callCount.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(tmpFile, []byte(policyFor("banuser", i+1)), 0600); err != nil {
			t.Fatalf("failed to write policy file: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	if got := callCount.Load(); got != 2 {
		t.Errorf("expected 2 callbacks after debouncing (initial + 1 debounced), got %d", got)
	}
}

// TestPolicyWatcherInvalidPolicyRejected verifies that an invalid file is
// skipped and a later valid one is applied.
func TestPolicyWatcherInvalidPolicyRejected(t *testing.T) {
	tmpFile := createTempPolicyFile(t, policyFor("banuser", 10))

	var callCount atomic.Int32
	startWatcher(t, tmpFile, 100, func(*PolicyFile) error {
		callCount.Add(1)
		return nil
	})

	if err := os.WriteFile(tmpFile, []byte("schema_version: v999\n"), 0600); err != nil {
		t.Fatalf("failed to write invalid policy: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if callCount.Load() != 1 {
		t.Errorf("expected callback NOT to be called for invalid policy, got %d calls", callCount.Load())
	}

	if err := os.WriteFile(tmpFile, []byte(policyFor("room", 2)), 0600); err != nil {
		t.Fatalf("failed to write valid policy: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if callCount.Load() != 2 {
		t.Errorf("expected 2 callbacks after recovery, got %d", callCount.Load())
	}
}

// TestPolicyWatcherAtomicReplace verifies that a policy written with
// WriteYAMLFile, which replaces the inode, is still picked up.
func TestPolicyWatcherAtomicReplace(t *testing.T) {
	tmpFile := createTempPolicyFile(t, policyFor("banuser", 10))

	var callCount atomic.Int32
	startWatcher(t, tmpFile, 100, func(*PolicyFile) error {
		callCount.Add(1)
		return nil
	})

	level := 4
	for i := 0; i < 2; i++ {
		if err := WriteYAMLFile(tmpFile, &PolicyFile{
			SchemaVersion: "v1",
			Commands:      []PolicyEntry{{Name: "banuser", AccessLevel: &level}},
		}); err != nil {
			t.Fatalf("WriteYAMLFile failed: %v", err)
		}
		time.Sleep(400 * time.Millisecond)
	}

	if got := callCount.Load(); got < 2 {
		t.Errorf("expected a reload per atomic write, got %d callbacks", got)
	}
}

func TestNewPolicyWatcherValidation(t *testing.T) {
	if _, err := NewPolicyWatcher(PolicyWatcherConfig{}, func(*PolicyFile) error { return nil }); err == nil {
		t.Error("expected error for empty FilePath")
	}
	if _, err := NewPolicyWatcher(PolicyWatcherConfig{FilePath: "x"}, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestPolicyWatcherStartFailsOnInvalidFile(t *testing.T) {
	tmpFile := createTempPolicyFile(t, "schema_version: v0\n")

	watcher, err := NewPolicyWatcher(PolicyWatcherConfig{FilePath: tmpFile}, func(*PolicyFile) error { return nil })
	if err != nil {
		t.Fatalf("NewPolicyWatcher failed: %v", err)
	}
	if err := watcher.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail for an invalid policy")
	}
	if err := watcher.Stop(context.Background()); err != nil {
		t.Errorf("Stop on a watcher that never started should succeed, got %v", err)
	}
}
