// +build !trace

package mcheap

const trace = false
