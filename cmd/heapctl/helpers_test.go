package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/joshuapare/heapkit/internal/testutil"
	"github.com/joshuapare/heapkit/target"
)

const (
	mainStart target.Address = 0x4000
	mainSize                 = 4096
)

// scenarioTarget builds a profiled target whose main heap holds one free
// block of 512 bytes and two blocks of 256 and 128 bytes owned by task 3.
// With cycle set the free block points at itself.
func scenarioTarget(t *testing.T, cycle bool) *target.Snapshot {
	t.Helper()
	b := testutil.New(t).WithDMHeaps(testutil.DMOptions{Profiling: true}).WithScheduler()
	b.Segment(target.SpaceDM, mainStart, mainSize)
	b.SetDMHeap(0, 0, mainStart, mainSize, mainStart)
	next := target.Address(0)
	if cycle {
		next = mainStart
	}
	b.FreeNode(mainStart, 512, next)
	b.Node(0x4200, 256, 3)
	b.Node(0x4300, 128, 3)
	b.CodeSite(0x100, 0x180, "audio_task", "audio.c", 10)
	b.Task(0, 0x600, 3, 0x100)
	return b.Snapshot()
}

// useTarget makes every command open snap instead of a manifest, and resets
// the global flags to their defaults.
func useTarget(t *testing.T, snap target.Target) {
	t.Helper()
	orig := openTarget
	openTarget = func(string) (target.Target, io.Closer, error) { return snap, nil, nil }
	t.Cleanup(func() { openTarget = orig })
	resetFlags()
}

func resetFlags() {
	verbose, quiet, jsonOut, noColor, logJSON, logDir = false, false, false, true, false, ""
	processor, strict, live, cachePages = 0, false, false, target.DefaultCachePages
	profilePools, profileTagFallback, profileNoDiscover, profileMaxFree = true, false, false, 0
	regionsLayout, blocksLayout = "dm", "dm"
	freeLayout, freeRegion, freeNodes = "dm", "", false
	diagFormat, diagOutputFile, diagShowSummary, diagLayout = "text", "", false, "dm"
}

// stubExit records the exit code instead of exiting. The code is -1 until
// exit is called.
func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = orig })
	return &code
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }
