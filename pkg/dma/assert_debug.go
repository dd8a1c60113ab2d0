//go:build pingpongdebug

package dma

func assert(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}
