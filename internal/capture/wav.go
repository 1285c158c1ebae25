package capture

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
)

// writeWAVHeader writes a 44-byte RIFF header for signed 16-bit LE mono
// PCM. Pass dataSize=0 as a placeholder and call finalizeWAVHeader once the
// sample count is known.
func writeWAVHeader(w io.Writer, sampleRate, dataSize uint32) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	h := struct {
		RiffID      [4]byte
		RiffSize    uint32
		WaveID      [4]byte
		FmtID       [4]byte
		FmtSize     uint32
		AudioFormat uint16
		NumChannels uint16
		SampleRate  uint32
		ByteRate    uint32
		BlockAlign  uint16
		BitsPerSamp uint16
		DataID      [4]byte
		DataSize    uint32
	}{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    36 + dataSize,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: audioFormat,
		NumChannels: numChannels,
		SampleRate:  sampleRate,
		ByteRate:    byteRate,
		BlockAlign:  uint16(blockAlign),
		BitsPerSamp: bitsPerSample,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    dataSize,
	}

	return binary.Write(w, binary.LittleEndian, &h)
}

// finalizeWAVHeader patches the RIFF chunk size (offset 4) and data chunk
// size (offset 40) from the actual file size.
func finalizeWAVHeader(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}

	fileSize := info.Size()
	if fileSize < 44 {
		return nil
	}

	if _, err := f.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(fileSize-8)); err != nil {
		return err
	}

	if _, err := f.Seek(40, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, uint32(fileSize-44))
}

// writeToneWAV writes seconds of a 2400 Hz sine (the APT subcarrier) at the
// given sample rate. Used by simulate mode in place of the live pipeline.
func writeToneWAV(ctx context.Context, path string, sampleRate, seconds int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeWAVHeader(f, uint32(sampleRate), 0); err != nil {
		return err
	}

	const (
		toneHz       = 2400.0
		chunkSamples = 4096
	)
	totalSamples := seconds * sampleRate
	buf := make([]byte, chunkSamples*2)

	written := 0
	for written < totalSamples {
		select {
		case <-ctx.Done():
			return finalizeWAVHeader(f)
		default:
		}

		n := chunkSamples
		if written+n > totalSamples {
			n = totalSamples - written
		}

		for i := 0; i < n; i++ {
			t := float64(written+i) / float64(sampleRate)
			sample := int16(16000.0 * math.Sin(2.0*math.Pi*toneHz*t))
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
		}

		if _, err := f.Write(buf[:n*2]); err != nil {
			return err
		}
		written += n
	}

	return finalizeWAVHeader(f)
}
