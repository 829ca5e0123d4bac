// Package audio wraps synthesized PCM narration into playable WAV
// resources and manages their lifetime.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
	HeaderSize    = 44

	blockAlign = Channels * BitsPerSample / 8
	byteRate   = SampleRate * blockAlign
)

// ErrInvalidHeader is returned when a buffer does not start with a PCM WAV header
var ErrInvalidHeader = errors.New("invalid WAV header")

// Header is the decoded RIFF/WAVE header of a PCM stream
type Header struct {
	RIFFSize      uint32
	FormatSize    uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Duration returns the playback duration the header describes
func (h Header) Duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(h.DataSize) / float64(h.ByteRate) * float64(time.Second))
}

// EncodeWAV prefixes raw 24kHz 16-bit mono PCM with a 44-byte WAV header
func EncodeWAV(pcm []byte) []byte {
	n := uint32(len(pcm))

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+n)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(Channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, n)
	buf.Write(pcm)

	return buf.Bytes()
}

// EncodeBase64PCM decodes a base64 PCM payload and wraps it as WAV
func EncodeBase64PCM(payload string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	return EncodeWAV(pcm), nil
}

// ParseHeader decodes the 44-byte header at the start of wav
func ParseHeader(wav []byte) (Header, error) {
	var h Header
	if len(wav) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" ||
		string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		return h, ErrInvalidHeader
	}

	le := binary.LittleEndian
	h.RIFFSize = le.Uint32(wav[4:8])
	h.FormatSize = le.Uint32(wav[16:20])
	h.AudioFormat = le.Uint16(wav[20:22])
	h.Channels = le.Uint16(wav[22:24])
	h.SampleRate = le.Uint32(wav[24:28])
	h.ByteRate = le.Uint32(wav[28:32])
	h.BlockAlign = le.Uint16(wav[32:34])
	h.BitsPerSample = le.Uint16(wav[34:36])
	h.DataSize = le.Uint32(wav[40:44])

	return h, nil
}
