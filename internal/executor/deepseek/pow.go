package deepseek

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// powSolver wraps the bundled DeepSeekHashV1 WASM module
// (sha3_wasm_bg.7b9ca65ddd.wasm), invoked through the exact export ABI
// documented in §4.5: memory, __wbindgen_add_to_stack_pointer,
// __wbindgen_export_0, wasm_solve.
type powSolver struct {
	runtime  wazero.Runtime
	module   api.Module
	memory   api.Memory
	addStack api.Function
	alloc    api.Function
	solve    api.Function
}

func newPowSolver(wasmBytes []byte) (*powSolver, error) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)

	module, err := runtime.Instantiate(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate pow module: %w", err)
	}

	addStack := module.ExportedFunction("__wbindgen_add_to_stack_pointer")
	alloc := module.ExportedFunction("__wbindgen_export_0")
	solve := module.ExportedFunction("wasm_solve")
	if addStack == nil || alloc == nil || solve == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("pow module missing required exports")
	}

	return &powSolver{
		runtime:  runtime,
		module:   module,
		memory:   module.Memory(),
		addStack: addStack,
		alloc:    alloc,
		solve:    solve,
	}, nil
}

// solveChallenge computes the WASM-derived answer for a challenge string
// against the prefix "{salt}_{expire_at}_", following §4.5 step 4's exact
// calling convention.
func (s *powSolver) solveChallenge(challenge, salt string, expireAt, difficulty int64) (float64, error) {
	ctx := context.Background()
	prefix := fmt.Sprintf("%s_%d_", salt, expireAt)

	retResults, err := s.addStack.Call(ctx, api.EncodeI32(-16))
	if err != nil {
		return 0, fmt.Errorf("reserve return region: %w", err)
	}
	retPtr := uint32(api.DecodeI32(retResults[0]))
	defer s.addStack.Call(ctx, api.EncodeI32(16))

	challengePtr, err := s.writeString(ctx, challenge)
	if err != nil {
		return 0, err
	}
	prefixPtr, err := s.writeString(ctx, prefix)
	if err != nil {
		return 0, err
	}

	if _, err := s.solve.Call(ctx,
		uint64(retPtr),
		uint64(challengePtr.ptr), uint64(challengePtr.length),
		uint64(prefixPtr.ptr), uint64(prefixPtr.length),
		api.EncodeF64(float64(difficulty)),
	); err != nil {
		return 0, fmt.Errorf("wasm_solve call: %w", err)
	}

	statusBytes, ok := s.memory.Read(retPtr, 4)
	if !ok {
		return 0, fmt.Errorf("read pow status: out of bounds")
	}
	status := int32(binary.LittleEndian.Uint32(statusBytes))
	if status == 0 {
		return 0, fmt.Errorf("pow module reported failure (status 0)")
	}

	valueBytes, ok := s.memory.Read(retPtr+8, 8)
	if !ok {
		return 0, fmt.Errorf("read pow value: out of bounds")
	}
	value := math.Float64frombits(binary.LittleEndian.Uint64(valueBytes))
	return math.Trunc(value), nil
}

type wasmString struct {
	ptr    uint32
	length uint32
}

// writeString copies s's UTF-8 bytes into a freshly allocated WASM buffer
// via __wbindgen_export_0(size, align).
func (s *powSolver) writeString(ctx context.Context, str string) (wasmString, error) {
	data := []byte(str)
	results, err := s.alloc.Call(ctx, uint64(len(data)), uint64(1))
	if err != nil {
		return wasmString{}, fmt.Errorf("allocate string buffer: %w", err)
	}
	ptr := uint32(results[0])
	if len(data) > 0 && !s.memory.Write(ptr, data) {
		return wasmString{}, fmt.Errorf("write string buffer: out of bounds")
	}
	return wasmString{ptr: ptr, length: uint32(len(data))}, nil
}

// powSolution is the base64-encoded payload sent as x-ds-pow-response.
type powSolution struct {
	Algorithm  string  `json:"algorithm"`
	Challenge  string  `json:"challenge"`
	Salt       string  `json:"salt"`
	Answer     float64 `json:"answer"`
	Signature  string  `json:"signature"`
	TargetPath string  `json:"target_path"`
}

// solveChallenge solves c and returns the base64-encoded x-ds-pow-response
// header value.
func solveChallenge(solver *powSolver, c *powChallenge) (string, error) {
	answer, err := solver.solveChallenge(c.Challenge, c.Salt, c.ExpireAt, c.Difficulty)
	if err != nil {
		return "", err
	}
	sol := powSolution{
		Algorithm:  c.Algorithm,
		Challenge:  c.Challenge,
		Salt:       c.Salt,
		Answer:     answer,
		Signature:  c.Signature,
		TargetPath: c.TargetPath,
	}
	raw, err := json.Marshal(sol)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
