// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// +build linux

package memquery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

// LinuxPageSource walks /proc/<pid>/maps for enumeration and reads through
// /proc/<pid>/mem, the same "open the OS's process-memory window" shape as
// a ReadProcessMemory-based scanner, rebased onto the Linux proc
// filesystem instead of a Win32 handle.
type LinuxPageSource struct {
	Modules ModuleLister // optional; nil disables ModulesOnly/NonModules filtering
}

var _ PageSource = (*LinuxPageSource)(nil)

func (s *LinuxPageSource) EnumeratePages(ctx context.Context, proc Process, opts EnumerateOptions) ([]NormalizedRegion, error) {
	path := fmt.Sprintf("/proc/%d/maps", proc.PID)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "memquery: open %s", path)
	}
	defer f.Close()

	var regions []NormalizedRegion
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		r, ok := parseMapsLine(scanner.Text())
		if !ok {
			continue
		}
		vlog.VI(2).Infof("memquery: maps line -> %+v", r)
		regions = append(regions, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "memquery: read %s", path)
	}

	var isModule func(NormalizedRegion) bool
	if s.Modules != nil {
		isModule = func(r NormalizedRegion) bool { return s.Modules.IsModuleBacked(proc, r) }
	}
	return FilterAndClip(regions, opts, isModule), nil
}

// parseMapsLine parses one "/proc/pid/maps" line, e.g.:
//   "7f2c3a000000-7f2c3a021000 rw-p 00000000 00:00 0"
func parseMapsLine(line string) (NormalizedRegion, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return NormalizedRegion{}, false
	}
	bounds := strings.SplitN(fields[0], "-", 2)
	if len(bounds) != 2 {
		return NormalizedRegion{}, false
	}
	lo, err := strconv.ParseUint(bounds[0], 16, 64)
	if err != nil {
		return NormalizedRegion{}, false
	}
	hi, err := strconv.ParseUint(bounds[1], 16, 64)
	if err != nil || hi <= lo {
		return NormalizedRegion{}, false
	}
	perms := fields[1]
	var prot Protection
	if strings.Contains(perms, "r") {
		prot |= ProtRead
	}
	if strings.Contains(perms, "w") {
		prot |= ProtWrite
	}
	if strings.Contains(perms, "x") {
		prot |= ProtExecute
	}
	if strings.Contains(perms, "p") {
		prot |= ProtCopyOnWrite
	}
	typ := PagePrivate
	if len(fields) >= 6 {
		typ = PageMapped
	}
	return NormalizedRegion{BaseAddress: lo, Size: hi - lo, Protection: prot, Type: typ}, true
}

func (s *LinuxPageSource) ReadBytes(ctx context.Context, proc Process, address uint64, buf []byte) (int, error) {
	path := fmt.Sprintf("/proc/%d/mem", proc.PID)
	f, err := os.Open(path)
	if err != nil {
		if n, pvErr := processVMReadv(proc.PID, address, buf); pvErr == nil {
			vlog.VI(2).Infof("memquery: open %s failed, fell back to process_vm_readv: %v", path, err)
			return n, nil
		}
		log.Error.Printf("memquery: open %s: %v", path, err)
		return 0, errors.Wrapf(err, "memquery: open %s", path)
	}
	defer f.Close()

	n, err := unix.Pread(int(f.Fd()), buf, int64(address))
	if err != nil {
		if n2, pvErr := processVMReadv(proc.PID, address, buf); pvErr == nil {
			vlog.VI(2).Infof("memquery: pread at %#x failed, fell back to process_vm_readv: %v", address, err)
			return n2, nil
		}
		log.Debug.Printf("memquery: pread at %#x failed, region likely deallocated or reprotected: %v", address, err)
		return n, errors.Wrapf(err, "memquery: pread at %#x", address)
	}
	return n, nil
}

// processVMReadv reads len(buf) bytes from proc's address space at address
// via process_vm_readv(2), a single-syscall cross-process read that needs no
// open file descriptor on /proc/pid/mem. Used only as ReadBytes's fallback:
// some kernels restrict it under the same ptrace-scope rules as ptrace(2)
// itself, so it is not a universal replacement for the mem-file path.
func processVMReadv(pid int, address uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	local := make([]unix.Iovec, 1)
	local[0].Base = &buf[0]
	local[0].SetLen(len(buf))
	remote := make([]unix.Iovec, 1)
	remote[0].Base = (*byte)(unsafe.Pointer(uintptr(address)))
	remote[0].SetLen(len(buf))
	return unix.ProcessVMReadv(pid, local, remote, 0)
}
