package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// hostEntry is one configured target: an address plus an optional alias.
type hostEntry struct {
	Address string `yaml:"address"`
	Alias   string `yaml:"alias"`
}

type hostsFileYAML struct {
	Hosts []hostEntry `yaml:"hosts"`
}

// parseHostsFile loads targets from a file. Accepted forms:
//   - YAML sequence of addresses: ["a", "b"]
//   - YAML mapping: {hosts: [{address: a, alias: www}, "b"]}
//   - plain text, one host per line, blank lines and #-comments skipped;
//     a second whitespace-separated token is the alias
func parseHostsFile(path string) ([]hostEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []hostEntry
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 && list[0].Address != "" {
		return list, nil
	}

	var doc hostsFileYAML
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Hosts) > 0 {
		return doc.Hosts, nil
	}

	return parsePlainHosts(string(data)), nil
}

func parsePlainHosts(data string) []hostEntry {
	var entries []hostEntry
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		e := hostEntry{Address: fields[0]}
		if len(fields) > 1 {
			e.Alias = fields[1]
		}
		entries = append(entries, e)
	}
	return entries
}

// UnmarshalYAML lets a host entry be either a bare address string or an
// {address, alias} mapping.
func (h *hostEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		h.Address = value.Value
		return nil
	}
	type plain hostEntry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*h = hostEntry(p)
	return nil
}

// mergeHosts combines file-listed hosts with positional arguments, file
// entries first, dropping duplicates by address.
func mergeHosts(fileEntries []hostEntry, args []string) ([]hostEntry, error) {
	var merged []hostEntry
	seen := map[string]bool{}
	add := func(e hostEntry) {
		if e.Address == "" || seen[e.Address] {
			return
		}
		seen[e.Address] = true
		merged = append(merged, e)
	}
	for _, e := range fileEntries {
		add(e)
	}
	for _, a := range args {
		add(hostEntry{Address: a})
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("no hosts provided")
	}
	return merged, nil
}
