package syscall

import "unsafe"

// This hosted kernel has no real user address space to copy strings and
// structs out of (paging/GDT are a different, unbuilt layer), so — the
// same idiom pkg/tty's ioctl dispatch already uses for its payload
// structs — a syscall argument that would be a user pointer is instead
// the address of the real Go value the caller already has in hand.
// argString/argPtr centralize that cast so each syscall body just names
// the Go type it expects.

func argString(a uintptr) string {
	if a == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(a))
}

// argPtr casts a raw argument back to the unsafe.Pointer it started as,
// for an out-parameter the callee writes through (Fstat's *Stat,
// Getdents' *[]Dirent, Pipe's *[2]int).
func argPtr(a uintptr) unsafe.Pointer {
	return unsafe.Pointer(a)
}

// argBytes dereferences a to the caller's []byte and clamps it to at most
// n bytes, mirroring read(2)/write(2)'s separate buffer-pointer and count
// arguments without needing a real count-bounded user copy.
func argBytes(a uintptr, n int) []byte {
	if a == 0 {
		return nil
	}
	buf := *(*[]byte)(unsafe.Pointer(a))
	if n >= 0 && n < len(buf) {
		buf = buf[:n]
	}
	return buf
}
