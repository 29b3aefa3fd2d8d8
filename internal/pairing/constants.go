// constants.go - BN254 pairing loop parameters and twist constants.
//
// All values are fixed by the curve. The signed digit arrays drive the
// Miller loop (6x+2) and the cyclotomic exponentiation by x in the final
// exponentiation; the operation count they imply is identical for every
// proof of a circuit.

package pairing

import "github.com/consensys/gnark-crypto/ecc/bn254/fp"

// AteLoopCount holds the signed binary digits of 6x+2 =
// 29793968203157093288 (x = 4965661367192848881), least significant first.
var AteLoopCount = [65]int8{
	0, 0, 0, 1, 0, 1, 0, -1, 0, 0, 1, -1, 0, 0, 1, 0,
	0, 1, 1, 0, -1, 0, 0, 1, 0, -1, 0, 0, 0, 0, 1, 1,
	1, 0, 0, -1, 0, 0, 1, 0, 0, 0, 0, 0, -1, 0, 0, 1,
	1, 0, 0, -1, 0, 0, 0, 1, 1, 0, -1, 0, 0, 1, 0, 1,
	1,
}

// XWnaf holds the non-adjacent form of x, least significant digit first.
var XWnaf = [63]int8{
	1, 0, 0, 0, -1, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0,
	1, 0, 0, 1, 0, -1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0,
	0, 0, 1, 0, -1, 0, -1, 0, -1, 0, 1, 0, 1, 0, 0, -1,
	0, 1, 0, 1, 0, -1, 0, 0, 1, 0, 1, 0, 0, 0, 1,
}

var (
	// twoInv is 1/2 in Fp.
	twoInv fp.Element

	// coeffB is the twisted curve coefficient b' = 3/(9+u).
	coeffB E2

	// twistMulByQX and twistMulByQY are the Frobenius twist multipliers:
	// (9+u)^((p-1)/3) and (9+u)^((p-1)/2).
	twistMulByQX E2
	twistMulByQY E2
)

func init() {
	twoInv.SetUint64(2)
	twoInv.Inverse(&twoInv)

	coeffB.A0.SetString("19485874751759354771024239261021720505790618469301721065564631296452457478373")
	coeffB.A1.SetString("266929791119991161246907387137283842545076965332900288569378510910307636690")

	twistMulByQX.A0.SetString("21575463638280843010398324269430826099269044274347216827212613867836435027261")
	twistMulByQX.A1.SetString("10307601595873709700152284273816112264069230130616436755625194854815875713954")

	twistMulByQY.A0.SetString("2821565182194536844548159561693502659359617185244120367078079554186484126554")
	twistMulByQY.A1.SetString("3505843767911556378687030309984248845540243509899259641013678093033130930403")
}
