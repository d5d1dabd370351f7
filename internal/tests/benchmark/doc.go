// Package benchmark holds throughput benchmarks for the kvmesh hot paths:
// the key-value table, the wire codec and the conditional-read worker.
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/
package benchmark
