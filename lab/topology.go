// Package lab drives the hands-on exercise environments: it loads lab
// topology definitions, verifies the service ports an exercise needs,
// reports container status and checks that the host has the required
// tooling installed.
package lab

import (
	"os"

	"github.com/pkg/errors"
	"muzzammil.xyz/jsonc"

	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// A service that an exercise expects running.
type Service struct {
	Name      string `json:"name"`
	Container string `json:"container,omitempty"`
	Port      int    `json:"port,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
}

// A network in the exercise topology.
type Network struct {
	Name    string `json:"name"`
	Subnet  string `json:"subnet"`
	Gateway string `json:"gateway,omitempty"`
}

// A lab exercise environment definition. Topology files are JSON with
// comments so that exercises can annotate what each piece is for.
type Topology struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ComposeFile string     `json:"composeFile,omitempty"`
	Networks    []*Network `json:"networks,omitempty"`
	Services    []*Service `json:"services"`
	Tools       []string   `json:"tools,omitempty"`
}

// Loads a topology definition from a JSONC file.
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read topology file %s", path)
	}
	return ParseTopology(raw)
}

// Parses a topology definition, stripping comments first.
func ParseTopology(raw []byte) (*Topology, error) {
	var topology Topology
	if err := jsonc.Unmarshal(raw, &topology); err != nil {
		return nil, errors.Wrap(err, "cannot parse topology definition")
	}
	if topology.Name == "" {
		return nil, errors.New("topology has no name")
	}
	if len(topology.Services) == 0 {
		return nil, errors.Errorf("topology %s defines no services", topology.Name)
	}
	for _, network := range topology.Networks {
		if _, prefix, ok := netlabutil.ParseIP(network.Subnet); !ok || !prefix {
			return nil, errors.Errorf("network %s in topology %s has invalid subnet %s", network.Name, topology.Name, network.Subnet)
		}
	}
	for _, service := range topology.Services {
		if service.Name == "" {
			return nil, errors.Errorf("topology %s has a service without a name", topology.Name)
		}
		if service.Protocol == "" {
			service.Protocol = "tcp"
		}
	}
	return &topology, nil
}

// Returns the TCP ports the topology expects listening.
func (topology *Topology) RequiredTCPPorts() []int {
	var ports []int
	for _, service := range topology.Services {
		if service.Port > 0 && service.Protocol == "tcp" && !service.Optional {
			ports = append(ports, service.Port)
		}
	}
	return ports
}
