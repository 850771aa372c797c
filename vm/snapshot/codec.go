package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Version is the snapshot schema version. Bump it when Node or Snapshot
// change incompatibly.
const Version uint16 = 1

// Format selects the payload encoding.
type Format byte

const (
	CBOR    Format = 'c'
	MsgPack Format = 'm'
)

func (f Format) String() string {
	switch f {
	case CBOR:
		return "cbor"
	case MsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("format(%q)", byte(f))
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "cbor":
		return CBOR, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown format %q", name)
	}
}

// magic prefixes every encoded snapshot. The byte after it is the Format.
var magic = []byte("HVS")

var ErrBadMagic = errors.New("snapshot: not a snapshot")

// Snapshot is a captured value with identifying metadata.
type Snapshot struct {
	Version uint16 `cbor:"1,keyasint" msgpack:"v"`
	ID      string `cbor:"2,keyasint" msgpack:"id"`
	Session string `cbor:"3,keyasint,omitempty" msgpack:"session,omitempty"`
	Created int64  `cbor:"4,keyasint" msgpack:"created"`
	Root    Node   `cbor:"5,keyasint" msgpack:"root"`
}

// New wraps root in a Snapshot with a fresh ID.
func New(session uuid.UUID, root Node) *Snapshot {
	s := &Snapshot{
		Version: Version,
		ID:      uuid.NewString(),
		Created: time.Now().UnixNano(),
		Root:    root,
	}
	if session != uuid.Nil {
		s.Session = session.String()
	}
	return s
}

// cborEncMode is canonical so identical values encode to identical bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor enc mode: %v", err))
	}
}

// Encode writes s to w in format f.
func Encode(w io.Writer, s *Snapshot, f Format) error {
	if _, err := w.Write(append(append([]byte(nil), magic...), byte(f))); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}
	switch f {
	case CBOR:
		if err := cborEncMode.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("snapshot: encode cbor: %w", err)
		}
	case MsgPack:
		if err := msgpack.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("snapshot: encode msgpack: %w", err)
		}
	default:
		return fmt.Errorf("snapshot: unknown format %s", f)
	}
	return nil
}

// Decode reads a snapshot written by Encode and reports its format.
func Decode(r io.Reader) (*Snapshot, Format, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, 0, fmt.Errorf("snapshot: read header: %w", err)
	}
	if !bytes.Equal(head[:len(magic)], magic) {
		return nil, 0, ErrBadMagic
	}
	f := Format(head[len(magic)])

	var s Snapshot
	switch f {
	case CBOR:
		if err := cbor.NewDecoder(br).Decode(&s); err != nil {
			return nil, f, fmt.Errorf("snapshot: decode cbor: %w", err)
		}
	case MsgPack:
		if err := msgpack.NewDecoder(br).Decode(&s); err != nil {
			return nil, f, fmt.Errorf("snapshot: decode msgpack: %w", err)
		}
	default:
		return nil, f, fmt.Errorf("snapshot: unknown format %s", f)
	}
	if s.Version != Version {
		return nil, f, fmt.Errorf("snapshot: schema version %d, want %d", s.Version, Version)
	}
	return &s, f, nil
}

// Marshal encodes s into a byte slice.
func Marshal(s *Snapshot, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a snapshot from data.
func Unmarshal(data []byte) (*Snapshot, Format, error) {
	return Decode(bytes.NewReader(data))
}
