// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Latticed is the worker daemon: it polls the global queue for
// invocations, executes each one's WebAssembly function inside a
// sandboxed wazero runtime with the OpenMP runtime and host syscall
// table wired in, and reports results back through its scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/tetratelabs/wazero"

	"github.com/latticerun/lattice/config"
	"github.com/latticerun/lattice/guest"
	"github.com/latticerun/lattice/hostcall"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/openmp"
	"github.com/latticerun/lattice/scheduler"
	"github.com/latticerun/lattice/statestore"
	"github.com/latticerun/lattice/stats"
	"github.com/latticerun/lattice/worker"
)

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("latticed: ")
	must.Func = log.Fatal

	cfg := config.Default()
	if err := cfg.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	functionDir := functionDirFlag()
	statsMap := stats.NewMap()

	store, closeStore, err := newStore(cfg)
	must.Nil(err, "state store")
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	omp := openmp.NewRuntime(guest.ThreadHandle(0), cfg.MaxActiveLevel, cfg.MaxDevices)

	loader, hc, err := newModuleLoader(ctx, cfg, functionDir, omp, statsMap)
	must.Nil(err, "module loader")

	pool := worker.NewPool(cfg, loader, statsMap, store, hc)
	sched := scheduler.NewLocal(func(ctx context.Context, inv *message.Invocation) (int32, error) {
		exec := &worker.Executor{Load: loader, Store: store, Stats: statsMap, Hostcalls: hc}
		exec.Run(ctx, inv)
		return int32(inv.ReturnCode), nil
	})
	omp.SetDistributedDeps(sched, store)

	globalQueue := worker.NewInMemoryBus(256)
	sharing := worker.NewInMemoryBus(64)

	var stateServer *statestore.Server
	if mem, ok := store.(*statestore.Memory); ok && cfg.StateMode == config.StateModeInMemory {
		stateServer = statestore.NewServer(mem, make(chan statestore.Request, 64))
	}

	listeners := worker.NewListeners(cfg, pool, sched, globalQueue, sharing, nil, stateServer, nil)
	listeners.Run(ctx)

	log.Printf("latticed: node %s listening, pool capacity %d, state mode %s", cfg.NodeID, cfg.PoolCapacity, cfg.StateMode)

	waitForSignal()
	log.Print("latticed: shutting down")
	cancel()
	listeners.Shutdown()
}

func functionDirFlag() string {
	if d := os.Getenv("LATTICE_FUNCTION_DIR"); d != "" {
		return d
	}
	return "/var/lib/lattice/functions"
}

func newStore(cfg *config.Config) (statestore.Store, func(), error) {
	switch cfg.StateMode {
	case config.StateModeS3:
		s3store, err := statestore.NewS3(cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, nil, err
		}
		return s3store, func() {}, nil
	default:
		mem := statestore.NewMemory()
		return mem, func() {}, nil
	}
}

// newModuleLoader wires one node-wide "env" host module - the hostcall
// syscall table plus the OMP intrinsics - and returns a worker.ModuleLoader
// that compiles and instantiates each requested function's .wasm file
// against it. The host module is built once: hostcall.Table's FD
// ownership is already scoped per guest.ThreadHandle, and openmp.Runtime's
// state is scoped per thread handle too, so concurrent invocations on the
// same node share the import surface safely without re-registering it.
func newModuleLoader(ctx context.Context, cfg *config.Config, functionDir string, omp *openmp.Runtime, statsMap *stats.Map) (worker.ModuleLoader, *hostcall.Table, error) {
	rt := wazero.NewRuntime(ctx)

	hc := hostcall.New(cfg.HostsFile, cfg.ResolvConfFile, statsMap)
	env := rt.NewHostModuleBuilder("env")
	hc.Build(env)
	omp.Register(ctx, rt, env)
	if _, err := env.Instantiate(ctx); err != nil {
		return nil, nil, fmt.Errorf("latticed: instantiate env host module: %w", err)
	}

	loader := func(ctx context.Context, inv *message.Invocation) (*guest.Module, error) {
		path := filepath.Join(functionDir, inv.User, inv.Function+".wasm")
		bytecode, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("latticed: read function: %w", err)
		}

		modCfg := wazero.NewModuleConfig().WithName(fmt.Sprintf("%s-%x", inv.Function, inv.ID)).WithStdout(os.Stdout)
		mod, err := rt.InstantiateWithConfig(ctx, bytecode, modCfg)
		if err != nil {
			return nil, fmt.Errorf("latticed: instantiate: %w", err)
		}
		return guest.New(mod, mod.ExportedTable("__indirect_function_table")), nil
	}
	return loader, hc, nil
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
