package opt

import (
	"testing"
	"unsafe"
)

func TestCacheLineSize(t *testing.T) {
	if CacheLineSize_ == 0 || CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("CacheLineSize_ = %d, want a power of two", CacheLineSize_)
	}
}

func TestPadSize(t *testing.T) {
	size := unsafe.Sizeof(Pad_{})
	if size != 0 && size != CacheLineSize_ {
		t.Fatalf("Pad_ size = %d, want 0 or %d", size, CacheLineSize_)
	}
}
