// build.go - Flattens Groth16 verification into the instruction array.
//
// The program has three phases: preparing the public-input linear
// combination, the combined three-pair Miller loop, and the final
// exponentiation. Its length depends only on the circuit's public input
// count, never on input or proof values, so every proof of a circuit
// takes the same number of operations and the same number of rounds.

package program

import "shield/internal/pairing"

// scalarBits is the bit width walked per public input. All bits are
// always processed; skipping leading zeros would leak the input size
// through the work performed.
const scalarBits = 256

// bitsPerOp is the window one OpInputBits instruction advances.
const bitsPerOp = 8

// regScratch holds conj(base) during cyclotomic exponentiations.
// Register 0 carries the Miller accumulator into the easy part and the
// running value through the hard part.
const regScratch = NumGTRegisters - 1

// Build flattens the verification of a circuit with numInputs public
// inputs into one operation array.
func Build(numInputs int) []Op {
	var ops []Op

	// Phase 1: L = K[0] + sum(input[i] * K[i+1]).
	for i := 0; i < numInputs; i++ {
		for bit := 0; bit < scalarBits; bit += bitsPerOp {
			ops = append(ops, Op{Code: OpInputBits, Arg0: uint16(i), Arg1: uint16(bit)})
		}
		ops = append(ops, Op{Code: OpInputAdd, Arg0: uint16(i)})
	}
	ops = append(ops, Op{Code: OpInputsFinish})

	// Phase 2: combined Miller loop over (A,B), (L,-gamma), (C,-delta).
	// The gamma and delta pairs use precomputed line schedules, indexed
	// in lockstep with the dynamic steps on B.
	lineIdx := uint16(0)
	ell := func() {
		ops = append(ops,
			Op{Code: OpEllDynamic},
			Op{Code: OpEllGamma, Arg0: lineIdx},
			Op{Code: OpEllDelta, Arg0: lineIdx},
		)
		lineIdx++
	}
	for it := 0; it < 64; it++ {
		if it > 0 {
			ops = append(ops, Op{Code: OpSquare})
		}
		ops = append(ops, Op{Code: OpDoubleStep})
		ell()
		switch pairing.AteLoopCount[63-it] {
		case 1:
			ops = append(ops, Op{Code: OpAddStep})
			ell()
		case -1:
			ops = append(ops, Op{Code: OpAddStepNeg})
			ell()
		}
	}
	ops = append(ops, Op{Code: OpMulByChar}, Op{Code: OpAddStep})
	ell()
	ops = append(ops, Op{Code: OpMulByCharNeg}, Op{Code: OpAddStep})
	ell()

	// Phase 3: final exponentiation.
	ops = append(ops, buildFinalExp()...)
	return ops
}

// expByNegX emits gt[dst] = gt[src]^-x via the fixed WNAF of x. src must
// differ from dst and survives; the scratch register holds conj(src).
func expByNegX(dst, src uint16) []Op {
	ops := []Op{
		{Code: OpGTConj, Arg0: regScratch, Arg1: src},
		{Code: OpGTOne, Arg0: dst},
	}
	for i := len(pairing.XWnaf) - 1; i >= 0; i-- {
		if i != len(pairing.XWnaf)-1 {
			ops = append(ops, Op{Code: OpGTCycSquare, Arg0: dst, Arg1: dst})
		}
		switch pairing.XWnaf[i] {
		case 1:
			ops = append(ops, Op{Code: OpGTMul, Arg0: dst, Arg1: dst, Arg2: src})
		case -1:
			ops = append(ops, Op{Code: OpGTMul, Arg0: dst, Arg1: dst, Arg2: regScratch})
		}
	}
	ops = append(ops, Op{Code: OpGTConj, Arg0: dst, Arg1: dst})
	return ops
}

// buildFinalExp emits the standard BN254 final exponentiation over the
// GT register file. Register map through the hard part: 0 holds r, 1 y0,
// 2 y1, 3 y2/y3, 4 y4/y10/y11, 5 y5, 6 y6/y7/y8/y14, 7 y9, 8 y12/y13.
func buildFinalExp() []Op {
	ops := []Op{
		// Easy part: r = frob2(conj(f) * f^-1) * (conj(f) * f^-1).
		{Code: OpGTConj, Arg0: 1, Arg1: 0},
		{Code: OpGTInv, Arg0: 2, Arg1: 0},
		{Code: OpGTMul, Arg0: 0, Arg1: 1, Arg2: 2},
		{Code: OpGTSet, Arg0: 2, Arg1: 0},
		{Code: OpGTFrobenius, Arg0: 0, Arg1: 0, Arg2: 2},
		{Code: OpGTMul, Arg0: 0, Arg1: 0, Arg2: 2},
	}

	// Hard part.
	ops = append(ops, expByNegX(1, 0)...) // y0 = r^-x
	ops = append(ops,
		Op{Code: OpGTCycSquare, Arg0: 2, Arg1: 1}, // y1 = y0^2
		Op{Code: OpGTCycSquare, Arg0: 3, Arg1: 2}, // y2 = y1^2
		Op{Code: OpGTMul, Arg0: 3, Arg1: 3, Arg2: 2}, // y3 = y2*y1
	)
	ops = append(ops, expByNegX(4, 3)...)                // y4 = y3^-x
	ops = append(ops, Op{Code: OpGTCycSquare, Arg0: 5, Arg1: 4}) // y5 = y4^2
	ops = append(ops, expByNegX(6, 5)...)                // y6 = y5^-x
	ops = append(ops,
		Op{Code: OpGTConj, Arg0: 3, Arg1: 3},            // y3 = conj(y3)
		Op{Code: OpGTConj, Arg0: 6, Arg1: 6},            // y6 = conj(y6)
		Op{Code: OpGTMul, Arg0: 6, Arg1: 6, Arg2: 4},    // y7 = y6*y4
		Op{Code: OpGTMul, Arg0: 6, Arg1: 6, Arg2: 3},    // y8 = y7*y3
		Op{Code: OpGTMul, Arg0: 7, Arg1: 6, Arg2: 2},    // y9 = y8*y1
		Op{Code: OpGTMul, Arg0: 4, Arg1: 6, Arg2: 4},    // y10 = y8*y4
		Op{Code: OpGTMul, Arg0: 4, Arg1: 4, Arg2: 0},    // y11 = y10*r
		Op{Code: OpGTFrobenius, Arg0: 8, Arg1: 7, Arg2: 1}, // y12 = frob(y9)
		Op{Code: OpGTMul, Arg0: 8, Arg1: 8, Arg2: 4},    // y13 = y12*y11
		Op{Code: OpGTFrobenius, Arg0: 6, Arg1: 6, Arg2: 2}, // y8 = frob2(y8)
		Op{Code: OpGTMul, Arg0: 6, Arg1: 6, Arg2: 8},    // y14 = y8*y13
		Op{Code: OpGTConj, Arg0: 0, Arg1: 0},            // r = conj(r)
		Op{Code: OpGTMul, Arg0: 0, Arg1: 0, Arg2: 7},    // r *= y9
		Op{Code: OpGTFrobenius, Arg0: 0, Arg1: 0, Arg2: 3},
		Op{Code: OpGTMul, Arg0: 0, Arg1: 0, Arg2: 6},    // r *= y14
		Op{Code: OpGTCompare, Arg0: 0},
	)
	return ops
}
