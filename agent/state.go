package agent

import (
	"fmt"
	"runtime"

	fqdn "github.com/Showmax/go-fqdn"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	log "github.com/sirupsen/logrus"

	"github.com/grimm00/networking-learning-sub003"
)

// Host state reported to the server and over the REST API.
type State struct {
	AgentVersion         string     `json:"agentVersion"`
	Hostname             string     `json:"hostname"`
	Cpus                 int64      `json:"cpus"`
	CpusLoad             string     `json:"cpusLoad"`
	Memory               int64      `json:"memory"`
	UsedMemory           int64      `json:"usedMemory"`
	Uptime               int64      `json:"uptime"`
	Os                   string     `json:"os"`
	Platform             string     `json:"platform"`
	PlatformFamily       string     `json:"platformFamily"`
	PlatformVersion      string     `json:"platformVersion"`
	KernelVersion        string     `json:"kernelVersion"`
	KernelArch           string     `json:"kernelArch"`
	VirtualizationSystem string     `json:"virtualizationSystem,omitempty"`
	VirtualizationRole   string     `json:"virtualizationRole,omitempty"`
	HostID               string     `json:"hostID"`
	Services             []*Service `json:"services"`
}

// Collects the current host state. Unavailable pieces are logged and
// left at their zero values so one broken probe does not hide the rest.
func GetState(monitor ServiceMonitor) *State {
	state := &State{
		AgentVersion: netlab.Version,
		Hostname:     fqdn.Get(),
		Cpus:         int64(runtime.NumCPU()),
		Services:     monitor.GetServices(),
	}

	if hostInfo, err := host.Info(); err != nil {
		log.Warnf("Cannot get host info: %s", err)
	} else {
		state.Uptime = int64(hostInfo.Uptime / 3600)
		state.Os = hostInfo.OS
		state.Platform = hostInfo.Platform
		state.PlatformFamily = hostInfo.PlatformFamily
		state.PlatformVersion = hostInfo.PlatformVersion
		state.KernelVersion = hostInfo.KernelVersion
		state.KernelArch = hostInfo.KernelArch
		state.VirtualizationSystem = hostInfo.VirtualizationSystem
		state.VirtualizationRole = hostInfo.VirtualizationRole
		state.HostID = hostInfo.HostID
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warnf("Cannot get memory info: %s", err)
	} else {
		state.Memory = int64(vm.Total / 1024 / 1024 / 1024)
		state.UsedMemory = int64(vm.UsedPercent)
	}

	if avg, err := load.Avg(); err != nil {
		log.Warnf("Cannot get load average: %s", err)
	} else {
		state.CpusLoad = fmt.Sprintf("%.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)
	}
	return state
}
