// Package vigil wires the approval gate, the strategy registry, the
// execution tracker and the strategy runner into one service.
//
// A host builds it from configuration:
//
//	cfg, _ := vigil.LoadConfig(ctx, "vigil.yaml")
//	srv, _ := vigil.New(ctx, cfg)
//	defer srv.Close()
//	summary, _ := srv.Runner().RunAll(ctx)
//
// Risky steps inside executors call Gate().Guard and block until a human
// decides; strategies that fail repeatedly are paused by the tracker.
package vigil
