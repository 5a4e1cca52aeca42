/*
Package workers determines worker pool sizes that respect container CPU
limits.

runtime.NumCPU() reports the host's CPU count even under cgroup limits; Go
1.19+ sets GOMAXPROCS from the container limit, so worker counts derive from
GOMAXPROCS instead.

	// CPU-bound extraction stages
	n := workers.ForCPU(8)

	// Mixed decode-and-hash pipelines
	n := workers.ForMixed(0)

All functions respect the INDEX_WORKERS environment variable as a manual
override.
*/
package workers
