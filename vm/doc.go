// Package vm implements the Tarn runtime: a register-based virtual machine
// executing typed instructions over a tree of nested execution environments.
//
// The runtime is built from a small number of components:
//
//   - TypeRegistry: maps declared type names to indices and byte sizes.
//     Built during parsing, frozen before execution, shared read-only by
//     every environment.
//
//   - RegisterSet: per-environment register storage. Dynamic registers are
//     heap-backed and retagged on every store; static registers are
//     fixed-size blocks declared once and overwritten in place.
//
//   - Environment: a node in the global/thread/local scope tree. Each
//     environment owns its register set and resolves register operands
//     relative to itself (current scope, parent scope, or an associated
//     temp scope), which lets one compiled instruction execute correctly
//     at any call depth.
//
//   - Data manager (datamanage.go): the type-aware primitives every
//     instruction uses to allocate, clear, copy, move, load and box
//     register values.
//
//   - Machine: the dispatch loop. It activates a local environment per
//     function call and steps its ControlFlow cursor, one instruction at
//     a time, until the function returns or the context is cancelled.
//
// Pointer values never hold machine addresses. Boxed literals live in a
// Heap arena owned by the global environment and are addressed by opaque
// handles, so a snapshot of machine state is self-contained and the
// runtime needs no unsafe code.
//
// Supporting tooling includes a disassembler, CBOR machine-state
// snapshots (snapshot.go) and an optional SQLite-backed execution trace
// store (tracestore.go).
package vm
