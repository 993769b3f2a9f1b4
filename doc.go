// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
Package lattice implements a serverless platform for running untrusted
user functions compiled to WebAssembly. Functions are distributed across
a fleet of worker nodes and executed inside a sandboxed wazero runtime;
a restricted set of Linux syscalls is forwarded through the hostcall
package, and an OpenMP-compatible runtime (the openmp package) lets a
single function fork into a team of threads that run either as local
goroutines or, when a function requests more parallelism than fits on
one node, as chained invocations scheduled onto other nodes.

A function's entry point is called lattice_main. Its linear memory,
indirect function table, and the host state it can reach (open file
descriptors, socket handles) are scoped to one invocation: message.
Invocation describes a single call; worker.Pool is the bounded set of
concurrent slots a node offers to run them; scheduler.Scheduler places
an invocation and reports its outcome, either in-process
(scheduler.Local) or across a bigmachine cluster (scheduler.Bigmachine);
statestore.Store is the key-value side channel invocations forked from
the same root use to snapshot guest memory and combine OpenMP reduction
results.

Because compiled functions are delivered as WebAssembly bytecode rather
than Go source, there is no analogue of requiring driver and worker
binaries to share a GOOS/GOARCH pair: a function is bytes handed to
wazero at invocation time, which is precisely the isolation boundary
this package exists to enforce.
*/
package lattice
