// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	t.Parallel()

	info := Info()
	if !strings.Contains(info, Version) {
		t.Errorf("Info() = %q, want it to contain version %q", info, Version)
	}
	if !strings.Contains(info, GitCommit) {
		t.Errorf("Info() = %q, want it to contain commit %q", info, GitCommit)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	t.Parallel()

	full := Full()
	if !strings.Contains(full, "Go:") {
		t.Errorf("Full() = %q, want a Go version line", full)
	}
	if !strings.Contains(full, "Platform:") {
		t.Errorf("Full() = %q, want a platform line", full)
	}
}
