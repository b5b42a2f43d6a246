// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package kernel

import (
	"bytes"
	"net"
	"os/exec"
	"strings"

	"github.com/Nomadic-Drones/rustycan4docker/log"
	"github.com/Nomadic-Drones/rustycan4docker/vxerr"
)

// alreadyExistsMarker is the substring ip/cangw print on stderr when asked
// to create an object that is already there. Kernel tooling gives no richer
// signal than this string, so it is the one place in the codebase allowed
// to inspect stderr text.
const alreadyExistsMarker = "File exists"

// execInterface is the production Interface: it shells ip(8) and cangw(8)
// directly, using argv-vector exec.Command rather than a shell string
// since interface names derive from container-supplied endpoint uids.
type execInterface struct{}

// NewExecInterface returns the real, subprocess-backed Interface.
func NewExecInterface() Interface {
	return execInterface{}
}

// runTool runs name with args and returns its captured stderr alongside
// any *exec.ExitError (or other start/wait failure).
func runTool(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debugf("kernel: running %s %s", name, strings.Join(args, " "))
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// classifyAdd turns a runTool result for a creation command into the
// first-class Created/AlreadyExists distinction, or a KernelCommandError
// for anything else that went wrong.
func classifyAdd(op, stderr string, err error) (AddResult, error) {
	if err == nil {
		return Created, nil
	}
	if strings.Contains(stderr, alreadyExistsMarker) {
		return AlreadyExists, nil
	}
	return Created, vxerr.NewKernelCommandError(op, stderr, err)
}

func (execInterface) AddVcan(ifc string) (AddResult, error) {
	stderr, err := runTool("ip", "link", "add", "dev", ifc, "type", "vcan")
	return classifyAdd("add-vcan", stderr, err)
}

func (execInterface) DeleteVcan(ifc string) error {
	stderr, err := runTool("ip", "link", "del", "dev", ifc, "type", "vcan")
	if err != nil {
		return vxerr.NewKernelCommandError("delete-vcan", stderr, err)
	}
	return nil
}

func (execInterface) AddVxcanPair(dev, peer string) (AddResult, error) {
	stderr, err := runTool("ip", "link", "add", "dev", dev, "type", "vxcan", "peer", "name", peer)
	return classifyAdd("add-vxcan-pair", stderr, err)
}

func (execInterface) DeleteVxcanPair(dev string) error {
	stderr, err := runTool("ip", "link", "del", "dev", dev, "type", "vxcan")
	if err != nil {
		return vxerr.NewKernelCommandError("delete-vxcan-pair", stderr, err)
	}
	return nil
}

func (execInterface) LinkUp(ifc string) error {
	stderr, err := runTool("ip", "link", "set", "up", ifc)
	if err != nil {
		return vxerr.NewKernelCommandError("link-up", stderr, err)
	}
	return nil
}

func (execInterface) LinkDown(ifc string) error {
	stderr, err := runTool("ip", "link", "set", "down", ifc)
	if err != nil {
		return vxerr.NewKernelCommandError("link-down", stderr, err)
	}
	return nil
}

// ListInterfaces enumerates host interface names via net.Interfaces()
// rather than parsing ip link show output.
func (execInterface) ListInterfaces() (map[string]struct{}, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, vxerr.NewKernelCommandError("list-interfaces", "", err)
	}

	ifaces := make(map[string]struct{}, len(ifs))
	for _, ifc := range ifs {
		ifaces[ifc.Name] = struct{}{}
	}
	return ifaces, nil
}

func (execInterface) CangwAdd(src, dst string, extended bool) error {
	args := cangwArgs("-A", src, dst, extended)
	stderr, err := runTool("cangw", args...)
	if err != nil {
		return vxerr.NewKernelCommandError("cangw-add", stderr, err)
	}
	return nil
}

func (execInterface) CangwDel(src, dst string, extended bool) error {
	args := cangwArgs("-D", src, dst, extended)
	stderr, err := runTool("cangw", args...)
	if err != nil {
		return vxerr.NewKernelCommandError("cangw-del", stderr, err)
	}
	return nil
}

// cangwArgs builds the cangw argv for mode ("-A" or "-D"). Every logical
// rule pair needs two kernel entries, one per frame format: standard
// frames use -e, extended (29-bit) frames use -eX. The network package
// calls CangwAdd/CangwDel once per format to install/remove both.
func cangwArgs(mode, src, dst string, extended bool) []string {
	flag := "-e"
	if extended {
		flag = "-eX"
	}
	return []string{mode, "-s", src, "-d", dst, flag}
}
