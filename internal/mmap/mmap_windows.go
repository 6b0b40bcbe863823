//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func osMap(fd uintptr, size int, writable bool) ([]byte, func([]byte) error, func([]byte) error, error) {
	protect := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		protect = windows.PAGE_READWRITE
		access = windows.FILE_MAP_READ | windows.FILE_MAP_WRITE
	}

	sz := uint64(size)
	h, err := windows.CreateFileMapping(windows.Handle(fd), nil, protect, uint32(sz>>32), uint32(sz&0xffffffff), nil)
	if err != nil {
		return nil, nil, nil, err
	}

	addr, err := windows.MapViewOfFile(h, access, 0, 0, uintptr(size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, nil, nil, err
	}

	// The view keeps the file mapping object alive.
	_ = windows.CloseHandle(h)

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	unmap := func(b []byte) error {
		return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&b[0])))
	}
	flush := func(b []byte) error {
		return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)))
	}

	return data, unmap, flush, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	// No madvise equivalent is wired on Windows; hints are best-effort.
	return nil
}
