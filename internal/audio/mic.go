package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MicSource captures float32 mono samples from the default system
// microphone at CaptureRate using malgo.
type MicSource struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMicSource prepares an unopened microphone source. Device access only
// happens on Start so a denied microphone surfaces as a session error, not
// a construction failure.
func NewMicSource() *MicSource {
	return &MicSource{}
}

// Start opens the capture device and delivers sample chunks to fn from the
// audio thread. fn must not block.
func (m *MicSource) Start(fn func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = CaptureRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			n := len(input) / 2
			if n == 0 {
				return
			}
			samples := make([]float32, n)
			for i := 0; i < n; i++ {
				v := int16(uint16(input[2*i]) | uint16(input[2*i+1])<<8)
				samples[i] = float32(v) / 32768.0
			}
			fn(samples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("microphone start: %w", err)
	}

	m.ctx = ctx
	m.device = device
	return nil
}

// Stop releases the capture device. Idempotent.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
	return nil
}
