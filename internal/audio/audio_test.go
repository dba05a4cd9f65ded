package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDevice(t *testing.T) {
	devices := []Device{
		{ID: "usb", Name: "USB Interface"},
		{ID: "mic", Name: "Built-in Microphone", Default: true},
	}

	d, err := FindDevice(devices, "")
	require.NoError(t, err)
	assert.Equal(t, "mic", d.ID)

	d, err = FindDevice(devices, "usb")
	require.NoError(t, err)
	assert.Equal(t, "USB Interface", d.Name)

	_, err = FindDevice(devices, "missing")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = FindDevice(nil, "")
	assert.ErrorIs(t, err, ErrNoDevices)
}

func TestFindDeviceWithoutDefault(t *testing.T) {
	devices := []Device{{ID: "a"}, {ID: "b"}}
	d, err := FindDevice(devices, "")
	require.NoError(t, err)
	assert.Equal(t, "a", d.ID)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, CheckFormat(Format{SampleRate: 44100, Channels: 2}))
	assert.ErrorIs(t, CheckFormat(Format{SampleRate: 44100, Channels: 2, SampleFormat: FormatOther}), ErrUnsupportedFormat)
	assert.ErrorIs(t, CheckFormat(Format{SampleRate: 0, Channels: 2}), ErrUnsupportedFormat)
	assert.ErrorIs(t, CheckFormat(Format{SampleRate: 48000, Channels: 0}), ErrUnsupportedFormat)
}

func TestDeviceStrings(t *testing.T) {
	d := Device{Name: "Speakers", Default: true, Format: Format{SampleRate: 48000, Channels: 2}}
	assert.Equal(t, "Speakers (default)", d.String())
	assert.Equal(t, "48000 Hz, 2 ch, f32", d.NativeFormat().String())
}
