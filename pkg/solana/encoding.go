package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-manager-server/pkg/solana/shortvec"
)

func (s Signature) ToBase58() string {
	return base58.Encode(s[:])
}

func (b Blockhash) ToBase58() string {
	return base58.Encode(b[:])
}

// Marshal encodes the transaction in the legacy wire format: the compact
// signature array followed by the message.
func (t Transaction) Marshal() []byte {
	var b bytes.Buffer

	_, _ = shortvec.EncodeLen(&b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := bytes.NewReader(b)

	count, err := shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "failed to read signature count")
	}

	t.Signatures = make([]Signature, count)
	for i := range t.Signatures {
		if _, err := io.ReadFull(r, t.Signatures[i][:]); err != nil {
			return errors.Wrapf(err, "failed to read signature %d", i)
		}
	}

	rest, _ := io.ReadAll(r)
	return t.Message.Unmarshal(rest)
}

func (m Message) Marshal() []byte {
	var b bytes.Buffer

	b.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	_, _ = shortvec.EncodeLen(&b, len(m.Accounts))
	for _, account := range m.Accounts {
		b.Write(account)
	}

	b.Write(m.RecentBlockhash[:])

	_, _ = shortvec.EncodeLen(&b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b.WriteByte(ix.ProgramIndex)
		writeCompact(&b, ix.Accounts)
		writeCompact(&b, ix.Data)
	}

	return b.Bytes()
}

// Unmarshal decodes a legacy message. Versioned messages, marked by the high
// bit of the first byte, are rejected.
func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&0x80 != 0 {
		return errors.New("versioned messages not supported")
	}

	r := bytes.NewReader(b)

	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.Wrap(err, "failed to read header")
	}
	m.Header.NumSignatures = header[0]
	m.Header.NumReadonlySigned = header[1]
	m.Header.NumReadOnly = header[2]

	count, err := shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "failed to read account count")
	}
	m.Accounts = make([]ed25519.PublicKey, count)
	for i := range m.Accounts {
		m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		if _, err := io.ReadFull(r, m.Accounts[i]); err != nil {
			return errors.Wrapf(err, "failed to read account %d", i)
		}
	}

	if _, err := io.ReadFull(r, m.RecentBlockhash[:]); err != nil {
		return errors.Wrap(err, "failed to read recent blockhash")
	}

	count, err = shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "failed to read instruction count")
	}
	m.Instructions = make([]CompiledInstruction, count)
	for i := range m.Instructions {
		if m.Instructions[i], err = readInstruction(r, len(m.Accounts)); err != nil {
			return errors.Wrapf(err, "failed to read instruction %d", i)
		}
	}

	return nil
}

func readInstruction(r *bytes.Reader, numAccounts int) (ix CompiledInstruction, err error) {
	if ix.ProgramIndex, err = r.ReadByte(); err != nil {
		return ix, errors.Wrap(err, "failed to read program index")
	}
	if int(ix.ProgramIndex) >= numAccounts {
		return ix, errors.Errorf("program index %d out of range", ix.ProgramIndex)
	}

	if ix.Accounts, err = readCompact(r); err != nil {
		return ix, errors.Wrap(err, "failed to read account indexes")
	}
	for _, index := range ix.Accounts {
		if int(index) >= numAccounts {
			return ix, errors.Errorf("account index %d out of range", index)
		}
	}

	if ix.Data, err = readCompact(r); err != nil {
		return ix, errors.Wrap(err, "failed to read data")
	}
	return ix, nil
}

// writeCompact writes b prefixed by its shortvec encoded length.
func writeCompact(w *bytes.Buffer, b []byte) {
	_, _ = shortvec.EncodeLen(w, len(b))
	w.Write(b)
}

func readCompact(r *bytes.Reader) ([]byte, error) {
	n, err := shortvec.DecodeLen(r)
	if err != nil {
		return nil, err
	}
	if n > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}

	b := make([]byte, n)
	_, err = io.ReadFull(r, b)
	return b, err
}
