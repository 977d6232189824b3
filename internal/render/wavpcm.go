package render

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"segue/internal/services"
)

// WAV format codes.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

func wavErr(operation, message string, err error) error {
	return services.Wrap(services.ErrValidation, "render", operation, message, err)
}

// ReadWAV decodes a RIFF/WAVE file into an interleaved stereo buffer. PCM16
// and 32-bit float payloads are supported; mono input is duplicated across
// both channels. Corrupt or unsupported files are a fatal validation error.
func ReadWAV(path string) (*Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, wavErr("read_wav", fmt.Sprintf("read %s", path), err)
	}
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, wavErr("read_wav", fmt.Sprintf("%s is not a RIFF/WAVE file", path), nil)
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bitDepth   uint16
		data       []byte
	)
	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(raw) {
			chunkSize = len(raw) - body
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, wavErr("read_wav", fmt.Sprintf("%s has a truncated fmt chunk", path), nil)
			}
			format = binary.LittleEndian.Uint16(raw[body : body+2])
			channels = binary.LittleEndian.Uint16(raw[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(raw[body+4 : body+8])
			bitDepth = binary.LittleEndian.Uint16(raw[body+14 : body+16])
		case "data":
			data = raw[body : body+chunkSize]
		}
		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}
	if data == nil {
		return nil, wavErr("read_wav", fmt.Sprintf("%s has no data chunk", path), nil)
	}
	if channels == 0 || channels > 2 {
		return nil, wavErr("read_wav", fmt.Sprintf("%s has %d channels, want mono or stereo", path, channels), nil)
	}

	var mono bool = channels == 1
	var frames []float32
	switch {
	case format == wavFormatPCM && bitDepth == 16:
		count := len(data) / 2
		frames = make([]float32, count)
		for i := 0; i < count; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
			frames[i] = float32(v) / 32768
		}
	case format == wavFormatFloat && bitDepth == 32:
		count := len(data) / 4
		frames = make([]float32, count)
		for i := 0; i < count; i++ {
			frames[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
		}
	default:
		return nil, wavErr("read_wav", fmt.Sprintf("%s: unsupported format %d/%d-bit", path, format, bitDepth), nil)
	}

	if mono {
		stereo := make([]float32, len(frames)*2)
		for i, s := range frames {
			stereo[i*2] = s
			stereo[i*2+1] = s
		}
		frames = stereo
	}
	return &Buffer{Samples: frames, SampleRate: int(sampleRate)}, nil
}

// WriteWAV encodes the buffer as a stereo PCM16 WAV file.
func WriteWAV(path string, buf *Buffer) error {
	dataSize := len(buf.Samples) * 2
	out := make([]byte, 44+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], numChannels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(buf.SampleRate))
	byteRate := uint32(buf.SampleRate * numChannels * 2)
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], numChannels*2)
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	for i, s := range buf.Samples {
		v := float64(s)
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[44+i*2:46+i*2], uint16(int16(math.Round(v*32767))))
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "render", "write_wav", fmt.Sprintf("write %s", path), err)
	}
	return nil
}
