package main

import "testing"

func TestListPresetsSucceeds(t *testing.T) {
	if err := listPresets(listCmd, nil); err != nil {
		t.Fatalf("listPresets: %v", err)
	}
}
