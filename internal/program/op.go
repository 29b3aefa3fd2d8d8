// op.go - Tagged instruction set for the staged verification program.
//
// Every operation is a fixed primitive with a statically known worst-case
// cost. The cost scale is calibrated from measured per-step compute of
// the reference decomposition; absolute units only matter relative to the
// partitioning ceiling.

package program

// Opcode identifies one primitive operation.
type Opcode uint8

const (
	// OpInputBits runs eight double-and-add steps of the scalar
	// multiplication input[Arg0] * K[Arg0+1], starting at bit Arg1.
	OpInputBits Opcode = iota
	// OpInputAdd folds the finished per-input product into the running
	// linear combination and clears the product accumulator.
	OpInputAdd
	// OpInputsFinish converts the linear combination to affine form.
	OpInputsFinish

	// OpSquare squares the Miller accumulator.
	OpSquare
	// OpDoubleStep doubles the running G2 point and pushes the line.
	OpDoubleStep
	// OpAddStep mixed-adds the proof's B point and pushes the line.
	OpAddStep
	// OpAddStepNeg mixed-adds -B and pushes the line.
	OpAddStepNeg
	// OpEllDynamic pops a line and folds it in, scaled by proof A.
	OpEllDynamic
	// OpEllGamma folds in gamma line Arg0, scaled by the prepared input.
	OpEllGamma
	// OpEllDelta folds in delta line Arg0, scaled by proof C.
	OpEllDelta
	// OpMulByChar applies the Frobenius endomorphism to the working B.
	OpMulByChar
	// OpMulByCharNeg applies it and negates the y coordinate.
	OpMulByCharNeg

	// GT register ops of the final exponentiation. Arg0 is the
	// destination register, Arg1 the source, Arg2 an extra operand.
	OpGTOne       // gt[Arg0] = 1
	OpGTSet       // gt[Arg0] = gt[Arg1]
	OpGTConj      // gt[Arg0] = conj(gt[Arg1])
	OpGTInv       // gt[Arg0] = gt[Arg1]^-1; fails on zero
	OpGTMul       // gt[Arg0] = gt[Arg1] * gt[Arg2]
	OpGTCycSquare // gt[Arg0] = cyclotomic square of gt[Arg1]
	OpGTFrobenius // gt[Arg0] = frobenius^Arg2(gt[Arg1]), Arg2 in 1..3
	// OpGTCompare resolves the terminal result: accept iff gt[Arg0]
	// equals the key's precomputed e(alpha, beta).
	OpGTCompare
)

// Op is one instruction of the flattened verification program.
type Op struct {
	Code             Opcode
	Arg0, Arg1, Arg2 uint16
}

// NumGTRegisters is the size of the GT register file. Register 0 is the
// Miller accumulator; the last register is exponentiation scratch.
const NumGTRegisters = 11

var opCosts = [...]uint32{
	OpInputBits:    30_000,
	OpInputAdd:     40_000,
	OpInputsFinish: 50_000,
	OpSquare:       90_000,
	OpDoubleStep:   110_000,
	OpAddStep:      110_000,
	OpAddStepNeg:   110_000,
	OpEllDynamic:   150_000,
	OpEllGamma:     150_000,
	OpEllDelta:     150_000,
	OpMulByChar:    20_000,
	OpMulByCharNeg: 20_000,
	OpGTOne:        2_000,
	OpGTSet:        2_000,
	OpGTConj:       2_000,
	OpGTInv:        300_000,
	OpGTMul:        135_000,
	OpGTCycSquare:  50_000,
	OpGTFrobenius:  55_000,
	OpGTCompare:    5_000,
}

// Cost returns the static worst-case cost of the operation.
func (o Op) Cost() uint32 {
	return opCosts[o.Code]
}
