package snapshot

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/quiverdb/quiver/codec"
)

// Envelope header: 4-byte magic, 1-byte version, then the codec and
// compression names length-prefixed with a single byte each. The payload
// runs to EOF.
var magicBytes = [4]byte{'Q', 'V', 'S', 'N'}

const formatVersion = 1

// Every envelope error wraps ErrInvalidSnapshot so callers can match the
// whole family with a single errors.Is.
var (
	ErrInvalidMagic   = fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	ErrInvalidVersion = fmt.Errorf("%w: unsupported version", ErrInvalidSnapshot)
	ErrUnknownCodec   = fmt.Errorf("%w: unknown codec", ErrInvalidSnapshot)
	ErrUnknownComp    = fmt.Errorf("%w: unknown compression", ErrInvalidSnapshot)
	ErrEncodeFailed   = fmt.Errorf("%w: encode failed", ErrInvalidSnapshot)
	ErrDecodeFailed   = fmt.Errorf("%w: decode failed", ErrInvalidSnapshot)
)

// Compression selects how the snapshot payload is compressed.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// EncodeOptions configure snapshot serialization.
type EncodeOptions struct {
	// Codec encodes the snapshot payload. Defaults to codec.Default.
	Codec codec.Codec
	// Compression wraps the encoded payload. Defaults to zstd.
	Compression Compression
}

// DefaultEncodeOptions are the options used when none are supplied.
var DefaultEncodeOptions = EncodeOptions{
	Codec:       codec.Default,
	Compression: CompressionZstd,
}

// Encode validates the snapshot and writes it to w in the envelope format.
func Encode(w io.Writer, s *Snapshot, optFns ...func(o *EncodeOptions)) error {
	opts := DefaultEncodeOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if err := s.Validate(); err != nil {
		return err
	}

	payload, err := opts.Codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	if err := writeHeader(w, opts.Codec.Name(), opts.Compression); err != nil {
		return err
	}

	switch opts.Compression {
	case CompressionNone:
		_, err = w.Write(payload)
	case CompressionZstd:
		var enc *zstd.Encoder
		if enc, err = zstd.NewWriter(w); err == nil {
			if _, err = enc.Write(payload); err == nil {
				err = enc.Close()
			}
		}
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		if _, err = lw.Write(payload); err == nil {
			err = lw.Close()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownComp, opts.Compression)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	return nil
}

// Decode reads a snapshot from r and validates it.
func Decode(r io.Reader) (*Snapshot, error) {
	codecName, comp, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}

	var payload []byte
	switch comp {
	case CompressionNone:
		payload, err = io.ReadAll(r)
	case CompressionZstd:
		var dec *zstd.Decoder
		if dec, err = zstd.NewReader(r); err == nil {
			payload, err = io.ReadAll(dec)
			dec.Close()
		}
	case CompressionLZ4:
		payload, err = io.ReadAll(lz4.NewReader(r))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownComp, comp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	var s Snapshot
	if err := c.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// WriteFile encodes the snapshot to a file, replacing any existing content.
func WriteFile(path string, s *Snapshot, optFns ...func(o *EncodeOptions)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, s, optFns...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes a snapshot from a file written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

func writeHeader(w io.Writer, codecName string, comp Compression) error {
	if len(codecName) > 255 || len(comp) > 255 {
		return fmt.Errorf("%w: header name too long", ErrEncodeFailed)
	}

	header := make([]byte, 0, 5+1+len(codecName)+1+len(comp))
	header = append(header, magicBytes[:]...)
	header = append(header, formatVersion)
	header = append(header, byte(len(codecName)))
	header = append(header, codecName...)
	header = append(header, byte(len(comp)))
	header = append(header, comp...)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

func readHeader(r io.Reader) (codecName string, comp Compression, err error) {
	var fixed [5]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if [4]byte(fixed[:4]) != magicBytes {
		return "", "", ErrInvalidMagic
	}
	if fixed[4] != formatVersion {
		return "", "", fmt.Errorf("%w: %d", ErrInvalidVersion, fixed[4])
	}

	readName := func() (string, error) {
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		buf := make([]byte, n[0])
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		return string(buf), nil
	}

	if codecName, err = readName(); err != nil {
		return "", "", err
	}
	name, err := readName()
	if err != nil {
		return "", "", err
	}
	return codecName, Compression(name), nil
}
