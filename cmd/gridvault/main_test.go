package main

import "testing"

func TestAcceptDefaultsToNewVersion(t *testing.T) {
	flag := acceptCmd.Flags().Lookup("new-version")
	if flag == nil {
		t.Fatal("accept has no new-version flag")
	}
	// A plain accept snapshots the workbook; skipping the version is the
	// explicit opt-out.
	if flag.DefValue != "true" {
		t.Errorf("new-version default = %q, want true", flag.DefValue)
	}
}

func TestExtractFlags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"force-refresh", "false"},
		{"store-file", "false"},
		{"include-empty-chunks", "false"},
		{"quiet", "false"},
	}
	for _, tt := range tests {
		flag := extractCmd.Flags().Lookup(tt.name)
		if flag == nil {
			t.Errorf("extract has no %s flag", tt.name)
			continue
		}
		if flag.DefValue != tt.def {
			t.Errorf("%s default = %q, want %q", tt.name, flag.DefValue, tt.def)
		}
	}
}
