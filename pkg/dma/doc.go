// Package dma provides the double-buffer ("ping-pong") streaming engine.
//
// A DMA channel alternately fills (or drains) two fixed halves of memory while
// software drains (or feeds) a logical byte stream:
//
//	half 0                 half 1
//	[0 ........ cap) [cap ........ 2*cap)
//	      ^tail             ^head
//
// The producer side (Producer) runs in interrupt context and is the only
// writer of head. The consumer side (Consumer) runs in the polling loop and is
// the only writer of tail. Pacer is the symmetric refill side for outbound
// streams.
//
// Hardware is reached through Backend, implemented once per peripheral.
package dma
