// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, rate, bitDepth, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create WAV file: %v", err)
	}
	enc := wav.NewEncoder(file, rate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write WAV data: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalise WAV: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("failed to close WAV: %v", err)
	}
	return path
}

func TestWAVSourceReplaysFrames(t *testing.T) {
	data := make([]int, 10*2)
	for i := range data {
		data[i] = i * 100
	}
	path := writeTestWAV(t, 22050, 16, 2, data)

	src, err := OpenWAV(path, 4, 2)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 22050 || src.Channels() != 2 || src.Format() != FormatS16 {
		t.Fatalf("header = %d Hz, %d ch, %s", src.SampleRate(), src.Channels(), src.Format())
	}

	var got []int32
	polls := 0
	for {
		frames, err := src.Receive(time.Second)
		if errors.Is(err, ErrSourceEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		polls++
		if len(frames) > 2 {
			t.Errorf("poll returned %d frames, want at most 2", len(frames))
		}
		for _, f := range frames {
			if err := f.Validate(); err != nil {
				t.Fatalf("invalid frame: %v", err)
			}
			got = append(got, f.Samples...)
		}
	}

	if len(got) != len(data) {
		t.Fatalf("replayed %d samples, want %d", len(got), len(data))
	}
	for i := range data {
		if int(got[i]) != data[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], data[i])
		}
	}
	// 10 sample frames in frames of 4, two per poll: 4+4 then 2.
	if polls != 2 {
		t.Errorf("polls = %d, want 2", polls)
	}

	if _, err := src.Receive(time.Second); !errors.Is(err, ErrSourceEmpty) {
		t.Errorf("exhausted source err = %v, want ErrSourceEmpty", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Receive(time.Second); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("closed source err = %v, want ErrSourceUnavailable", err)
	}
}

func TestOpenWAVMissingFile(t *testing.T) {
	_, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), 512, 1)
	if err == nil || !strings.Contains(err.Error(), "failed to open WAV file") {
		t.Errorf("expected open error, got %v", err)
	}
}

func TestNewWAVSourceRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWAV(path, 512, 1); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNewWAVSourceRejectsBadBufferSize(t *testing.T) {
	path := writeTestWAV(t, 8000, 16, 1, []int{1, 2, 3})
	if _, err := OpenWAV(path, 0, 1); err == nil {
		t.Error("expected error for zero frames per buffer")
	}
}
