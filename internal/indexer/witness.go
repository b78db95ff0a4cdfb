package indexer

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/go-bip352"

	"github.com/opcat-tools/catwatch/internal/chain"
	"github.com/opcat-tools/catwatch/internal/logging"
)

const (
	// opCat is the raw opcode byte, 0x7e.
	opCat = txscript.OP_CAT
	// opCatName is the mnemonic DisasmString renders for the opcode.
	opCatName = "OP_CAT"
	// annexTag is the first byte of the optional annex element of a
	// taproot witness.
	annexTag = 0x50
)

// Mode selects how a transaction is matched.
type Mode uint8

const (
	// ModeByteScan flags any witness element containing the raw opcode
	// byte. Cheap and never misses, but happily matches a 0x7e inside
	// signatures and hashes.
	ModeByteScan Mode = iota
	// ModeTapscript isolates the tapscript of every input and requires
	// the disassembly to name OP_CAT. Data pushes render as hex, so a
	// 0x7e inside pushed data no longer counts.
	ModeTapscript
	// ModeStrict is ModeTapscript with a byte prefilter over the whole
	// serialised transaction in front and a prevout lookup behind it,
	// confirming the spent output really is P2TR. Needs node access.
	ModeStrict
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "bytescan":
		return ModeByteScan, nil
	case "tapscript":
		return ModeTapscript, nil
	case "strict":
		return ModeStrict, nil
	default:
		return 0, fmt.Errorf("unknown match mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeByteScan:
		return "bytescan"
	case ModeTapscript:
		return "tapscript"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Matcher decides whether a transaction spends through a tapscript
// containing OP_CAT.
type Matcher struct {
	mode  Mode
	chain chain.Source // prevout lookups, only touched in ModeStrict
}

func NewMatcher(mode Mode, source chain.Source) *Matcher {
	return &Matcher{mode: mode, chain: source}
}

func (m *Matcher) Mode() Mode { return m.mode }

// MatchTx reports whether any input of tx matches under the configured
// mode. Inputs without witness data never match.
func (m *Matcher) MatchTx(tx *wire.MsgTx) (bool, error) {
	switch m.mode {
	case ModeByteScan:
		for _, in := range tx.TxIn {
			if witnessHasCatByte(in.Witness) {
				return true, nil
			}
		}
		return false, nil
	case ModeTapscript:
		for _, in := range tx.TxIn {
			script, ok := TapscriptFromWitness(in.Witness)
			if ok && scriptNamesCat(script) {
				return true, nil
			}
		}
		return false, nil
	case ModeStrict:
		return m.matchStrict(tx)
	default:
		return false, fmt.Errorf("unknown match mode %d", m.mode)
	}
}

func (m *Matcher) matchStrict(tx *wire.MsgTx) (bool, error) {
	// cheap prefilter, no 0x7e anywhere in the serialised transaction
	// means no OP_CAT either
	if !txHasCatByte(tx) {
		return false, nil
	}

	for _, in := range tx.TxIn {
		script, ok := TapscriptFromWitness(in.Witness)
		if !ok || !scriptNamesCat(script) {
			continue
		}
		if isNullOutpoint(&in.PreviousOutPoint) {
			// coinbase input, nothing to look up
			continue
		}
		prevTx, err := m.chain.RawTransaction(&in.PreviousOutPoint.Hash)
		if err != nil {
			logging.L.Err(err).
				Str("prev_txid", in.PreviousOutPoint.Hash.String()).
				Msg("prevout lookup failed")
			return false, fmt.Errorf("prevout lookup %s: %w", in.PreviousOutPoint.Hash, err)
		}
		outs := prevTx.MsgTx().TxOut
		if in.PreviousOutPoint.Index >= uint32(len(outs)) {
			logging.L.Warn().
				Str("prev_txid", in.PreviousOutPoint.Hash.String()).
				Uint32("vout", in.PreviousOutPoint.Index).
				Msg("prevout index out of range")
			continue
		}
		if bip352.IsP2TR(outs[in.PreviousOutPoint.Index].PkScript) {
			return true, nil
		}
	}
	return false, nil
}

// TapscriptFromWitness returns the tapscript of a script-path spend.
// The stack is [stack elements..., script, control block, optional
// annex]. With at least two elements and the last one starting with
// 0x50 the annex is present and gets skipped, after that the second to
// last element is the script. Key-path spends carry a single element
// and yield no script.
func TapscriptFromWitness(witness wire.TxWitness) ([]byte, bool) {
	if len(witness) >= 2 {
		last := witness[len(witness)-1]
		if len(last) > 0 && last[0] == annexTag {
			witness = witness[:len(witness)-1]
		}
	}
	if len(witness) < 2 {
		return nil, false
	}
	return witness[len(witness)-2], true
}

func witnessHasCatByte(witness wire.TxWitness) bool {
	for _, elem := range witness {
		if bytes.IndexByte(elem, opCat) >= 0 {
			return true
		}
	}
	return false
}

func txHasCatByte(tx *wire.MsgTx) bool {
	var buf bytes.Buffer
	err := tx.Serialize(&buf)
	if err != nil {
		// serialising into memory does not fail for parseable txs, fall
		// through to the full check if it somehow does
		logging.L.Err(err).Msg("error serialising tx for prefilter")
		return true
	}
	return bytes.IndexByte(buf.Bytes(), opCat) >= 0
}

// scriptNamesCat disassembles the script and looks for the OP_CAT
// mnemonic. Data pushes render as lowercase hex, so a 0x7e inside a
// push cannot produce a hit. Malformed scripts disassemble up to the
// broken opcode and still count if OP_CAT showed up before that.
func scriptNamesCat(script []byte) bool {
	asm, _ := txscript.DisasmString(script)
	return strings.Contains(asm, opCatName)
}

var zeroHash chainhash.Hash

func isNullOutpoint(op *wire.OutPoint) bool {
	return op.Index == math.MaxUint32 && op.Hash.IsEqual(&zeroHash)
}

// CatTapscripts returns the tapscripts of tx whose disassembly names
// OP_CAT, in input order. The report layer uses this to show what
// triggered a match.
func CatTapscripts(tx *wire.MsgTx) [][]byte {
	var scripts [][]byte
	for _, in := range tx.TxIn {
		script, ok := TapscriptFromWitness(in.Witness)
		if ok && scriptNamesCat(script) {
			scripts = append(scripts, script)
		}
	}
	return scripts
}
