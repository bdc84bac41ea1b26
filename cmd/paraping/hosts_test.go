package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeHosts(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestParseHostsFile_List(t *testing.T) {
	path := writeHosts(t, "hosts.yaml", "- example.com\n- 1.1.1.1\n")

	got, err := parseHostsFile(path)
	if err != nil {
		t.Fatalf("parseHostsFile: %v", err)
	}
	want := []hostEntry{{Address: "example.com"}, {Address: "1.1.1.1"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hosts: got %v, want %v", got, want)
	}
}

func TestParseHostsFile_Mapping(t *testing.T) {
	path := writeHosts(t, "hosts.yaml", "hosts:\n  - example.com\n  - 8.8.8.8\n")

	got, err := parseHostsFile(path)
	if err != nil {
		t.Fatalf("parseHostsFile: %v", err)
	}
	want := []hostEntry{{Address: "example.com"}, {Address: "8.8.8.8"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hosts: got %v, want %v", got, want)
	}
}

func TestParseHostsFile_Aliases(t *testing.T) {
	body := "hosts:\n  - address: 1.1.1.1\n    alias: cloudflare\n  - example.com\n"
	path := writeHosts(t, "hosts.yaml", body)

	got, err := parseHostsFile(path)
	if err != nil {
		t.Fatalf("parseHostsFile: %v", err)
	}
	want := []hostEntry{
		{Address: "1.1.1.1", Alias: "cloudflare"},
		{Address: "example.com"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hosts: got %v, want %v", got, want)
	}
}

func TestParseHostsFile_PlainText(t *testing.T) {
	body := "# monitored hosts\nexample.com\n1.1.1.1 cloudflare\n\n8.8.8.8\n"
	path := writeHosts(t, "hosts.txt", body)

	got, err := parseHostsFile(path)
	if err != nil {
		t.Fatalf("parseHostsFile: %v", err)
	}
	want := []hostEntry{
		{Address: "example.com"},
		{Address: "1.1.1.1", Alias: "cloudflare"},
		{Address: "8.8.8.8"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hosts: got %v, want %v", got, want)
	}
}

func TestParseHostsFile_Missing(t *testing.T) {
	if _, err := parseHostsFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMergeHosts_Dedupe(t *testing.T) {
	file := []hostEntry{{Address: "example.com", Alias: "web"}, {Address: "1.1.1.1"}}

	got, err := mergeHosts(file, []string{"example.com", "8.8.8.8"})
	if err != nil {
		t.Fatalf("mergeHosts: %v", err)
	}
	want := []hostEntry{
		{Address: "example.com", Alias: "web"},
		{Address: "1.1.1.1"},
		{Address: "8.8.8.8"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merged: got %v, want %v", got, want)
	}
}

func TestMergeHosts_Empty(t *testing.T) {
	if _, err := mergeHosts(nil, nil); err == nil {
		t.Fatal("expected error for empty host set")
	}
}
