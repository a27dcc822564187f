// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	previousCommit, previousDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = previousCommit, previousDirty })

	GitCommit = "abc1234"
	GitDirty = "false"
	if info := Info(); !strings.Contains(info, "(abc1234,") {
		t.Errorf("clean Info() = %q", info)
	}

	GitDirty = "true"
	if info := Info(); !strings.Contains(info, "(abc1234-dirty,") {
		t.Errorf("dirty Info() = %q", info)
	}
}

func TestBanner(t *testing.T) {
	banner := Banner("inputbus-daemon")
	if !strings.HasPrefix(banner, "inputbus-daemon "+Version) {
		t.Errorf("Banner = %q", banner)
	}
	if !strings.Contains(Full(), "Platform:") {
		t.Errorf("Full() lacks platform line: %q", Full())
	}
}
