package proxy

import "sync"

// copyBufPool recycles the relay's copy buffers across tunnels.
var copyBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32768)
		return &b
	},
}

func getCopyBuf() *[]byte {
	return copyBufPool.Get().(*[]byte)
}

func putCopyBuf(b *[]byte) {
	copyBufPool.Put(b)
}
