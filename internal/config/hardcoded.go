package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"lanpets.io/monitor/internal/model"
)

// hardCodedEntry mirrors model.NetworkInterfaceInfo's identifying fields in
// YAML-friendly form, since the YAML file is hand-edited by an operator
// rather than produced by a collector.
type hardCodedEntry struct {
	MAC          string `yaml:"mac,omitempty"`
	IP           string `yaml:"ip,omitempty"`
	DNSHostname  string `yaml:"dns_hostname,omitempty"`
	MDNSHostname string `yaml:"mdns_hostname,omitempty"`
}

// LoadHardCodedPetInterfaces reads the optional YAML sidecar file named by
// hard_coded_pet_interfaces_file, layering name -> NetworkInterfaceInfo
// overrides into resolution per SPEC_FULL.md §6. A missing file is not an
// error — the feature is opt-in.
func LoadHardCodedPetInterfaces(path string) (map[string]model.NetworkInterfaceInfo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hard_coded_pet_interfaces file: %w", err)
	}

	var raw map[string]hardCodedEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hard_coded_pet_interfaces file: %w", err)
	}

	out := make(map[string]model.NetworkInterfaceInfo, len(raw))
	for name, e := range raw {
		iface := model.NetworkInterfaceInfo{}
		if e.MAC != "" {
			iface.MAC = &e.MAC
		}
		if e.IP != "" {
			iface.IP = &e.IP
		}
		if e.DNSHostname != "" {
			iface.DNSHostname = &e.DNSHostname
		}
		if e.MDNSHostname != "" {
			iface.MDNSHostname = &e.MDNSHostname
		}
		out[name] = iface
	}
	return out, nil
}
