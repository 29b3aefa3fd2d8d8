// lines.go - Precomputed line-coefficient schedules for fixed G2 points.
//
// The gamma and delta points of a verifying key never change, so their
// Miller-loop lines are generated once at key load. The schedule below
// must match the order in which the verification program consumes
// indexed lines: one doubling line per ate iteration, one addition line
// per nonzero ate digit, then the two Frobenius closing additions.

package pairing

// LineScheduleLen is the number of lines one fixed pair contributes to
// the Miller loop.
func LineScheduleLen() int {
	n := 64 + 2
	for it := 0; it < 64; it++ {
		if AteLoopCount[63-it] != 0 {
			n++
		}
	}
	return n
}

// PrepareLines walks the full ate schedule for q and collects every line
// coefficient in consumption order.
func PrepareLines(q G2Affine) []LineCoeffs {
	lines := make([]LineCoeffs, 0, LineScheduleLen())
	negQ := q.Neg()
	r := ProjectiveFromAffine(&q)

	for it := 0; it < 64; it++ {
		lines = append(lines, DoublingStep(&r))
		switch AteLoopCount[63-it] {
		case 1:
			lines = append(lines, AdditionStep(&r, &q))
		case -1:
			lines = append(lines, AdditionStep(&r, &negQ))
		}
	}

	q1 := MulByChar(q)
	lines = append(lines, AdditionStep(&r, &q1))
	q2 := MulByChar(q1)
	q2.Y.Neg(&q2.Y)
	lines = append(lines, AdditionStep(&r, &q2))

	return lines
}
