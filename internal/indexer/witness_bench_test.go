package indexer

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Compares the three matching strategies on the two transaction shapes
// that dominate a real scan: the key path spend every block is full of,
// and the script path spend that actually executes OP_CAT. The miss
// path is the one that decides scan throughput.

var (
	benchCatScript = []byte{txscript.OP_2DUP, txscript.OP_CAT, txscript.OP_EQUAL}

	benchSource   *fakeSource
	benchKeyPath  *wire.MsgTx
	benchCatSpend *wire.MsgTx
)

func init() {
	benchSource = newFakeSource(0)
	prev := benchSource.addTx(fundingTx(p2trScript(0x04), 0x41))
	benchKeyPath = txWithWitness(wire.TxWitness{testSig})
	benchCatSpend = spendingTx(prev, 0, wire.TxWitness{benchCatScript, testControlBlock})
}

func BenchmarkByteScanMiss(b *testing.B) {
	matcher := NewMatcher(ModeByteScan, nil)
	for i := 0; i < b.N; i++ {
		_, err := matcher.MatchTx(benchKeyPath)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkByteScanHit(b *testing.B) {
	matcher := NewMatcher(ModeByteScan, nil)
	for i := 0; i < b.N; i++ {
		_, err := matcher.MatchTx(benchCatSpend)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTapscriptMiss(b *testing.B) {
	matcher := NewMatcher(ModeTapscript, nil)
	for i := 0; i < b.N; i++ {
		_, err := matcher.MatchTx(benchKeyPath)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTapscriptHit(b *testing.B) {
	matcher := NewMatcher(ModeTapscript, nil)
	for i := 0; i < b.N; i++ {
		_, err := matcher.MatchTx(benchCatSpend)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStrictMiss(b *testing.B) {
	matcher := NewMatcher(ModeStrict, benchSource)
	for i := 0; i < b.N; i++ {
		_, err := matcher.MatchTx(benchKeyPath)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStrictHit(b *testing.B) {
	matcher := NewMatcher(ModeStrict, benchSource)
	for i := 0; i < b.N; i++ {
		_, err := matcher.MatchTx(benchCatSpend)
		if err != nil {
			b.Fatal(err)
		}
	}
}
