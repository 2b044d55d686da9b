// +build trace

package mcheap

const trace = true
