//go:build portaudio

package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures from the default input device.
type PortAudioSource struct {
	rate, chans, frames int

	mu     sync.Mutex
	stream *portaudio.Stream
}

func NewPortAudioSource(rate, chans, framesPerBuffer int) *PortAudioSource {
	return &PortAudioSource{rate: rate, chans: chans, frames: framesPerBuffer}
}

func (p *PortAudioSource) SampleRate() int { return p.rate }
func (p *PortAudioSource) Channels() int   { return p.chans }

func (p *PortAudioSource) Start(callback func([]float32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return ErrRunning
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to get default input device: %w", err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: p.chans,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.rate),
		FramesPerBuffer: p.frames,
	}
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		callback(in)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	p.stream = stream
	return nil
}

func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	err := p.stream.Stop()
	if cerr := p.stream.Close(); err == nil {
		err = cerr
	}
	p.stream = nil
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
