package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Config controls how an Input is opened.
type Config struct {
	DeviceName  string // substring match, empty = auto-detect
	SampleRate  int
	Channels    int
	ChunkFrames int // granularity of the underlying stream reads
}

// Input is a blocking PCM capture device. Read fills the caller's buffer with
// interleaved signed 16-bit samples; callers pick the block size per read, so
// the engine can switch between large awake blocks and small sleep blocks on
// the same stream.
type Input struct {
	stream     *portaudio.Stream
	chunk      []int16
	channels   int
	sampleRate int
	device     *portaudio.DeviceInfo
}

// OpenInput opens and starts a capture stream. Failure here is fatal for the
// capture engine; there is no retry.
func OpenInput(cfg Config) (*Input, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = 256
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}

	in := &Input{
		chunk:      make([]int16, cfg.ChunkFrames*cfg.Channels),
		channels:   cfg.Channels,
		sampleRate: cfg.SampleRate,
		device:     device,
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.ChunkFrames,
	}, &in.chunk)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	in.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return in, nil
}

// Read fills dst with interleaved samples. len(dst) must be a multiple of
// ChunkFrames*Channels; the call blocks until the device has delivered that
// many samples.
func (in *Input) Read(dst []int16) error {
	for off := 0; off < len(dst); off += len(in.chunk) {
		if err := in.stream.Read(); err != nil {
			return err
		}
		copy(dst[off:], in.chunk)
	}
	return nil
}

// Recover handles a failed Read in place. Overflows are dropped data, not
// stream damage; anything else gets one stop/start cycle.
func (in *Input) Recover(readErr error) error {
	if errors.Is(readErr, portaudio.InputOverflowed) {
		return nil
	}
	if err := in.stream.Stop(); err != nil && !isInvalidStreamState(err) {
		return fmt.Errorf("recover stop: %w", err)
	}
	if err := in.stream.Start(); err != nil {
		return fmt.Errorf("recover start: %w", err)
	}
	return nil
}

// Close stops and closes the underlying stream.
func (in *Input) Close() error {
	if in.stream == nil {
		return nil
	}
	if err := in.stream.Stop(); err != nil && !isInvalidStreamState(err) {
		return err
	}
	return in.stream.Close()
}

// SampleRate returns the configured capture rate.
func (in *Input) SampleRate() int {
	return in.sampleRate
}

// Channels returns the interleaved channel count.
func (in *Input) Channels() int {
	return in.channels
}

// DeviceName returns the name of the opened device.
func (in *Input) DeviceName() string {
	if in.device == nil {
		return ""
	}
	return in.device.Name
}

// isInvalidStreamState checks if the provided error stems from stopping an
// already stopped stream.
func isInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
