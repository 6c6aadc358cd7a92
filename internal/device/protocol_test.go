// internal/device/protocol_test.go
package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, b, err := parseVersion(">>version\r\nFW: v0.2.1 20240521\r\n>> ")
	require.NoError(t, err)
	assert.Equal(t, "v0.2.1", v)
	assert.Equal(t, "20240521", b)

	_, _, err = parseVersion("version\r\nUnknown command\r\n>> ")
	assert.ErrorIs(t, err, ErrFirmwareUnsupported)

	_, _, err = parseVersion("version\r\nFW: v0.2.1\r\n>> ")
	assert.ErrorIs(t, err, ErrVersionUnparseable)

	// the marker must start a line
	_, _, err = parseVersion("version\r\nold FW: v0.1 2023\r\n>> ")
	assert.ErrorIs(t, err, ErrVersionUnparseable)
}

func TestParseConfig(t *testing.T) {
	c, err := parseConfig(testConfigReply + ">> ")
	require.NoError(t, err)
	assert.Equal(t, Config{MirrorDisplay: true, PrintTimestamps: true, PrintColors: true}, c)

	c, err = parseConfig("Display mirrored: OFF\nDisp rotation portrait: ON\n")
	require.NoError(t, err)
	assert.Equal(t, Config{PortraitMode: true}, c)

	_, err = parseConfig("Print colors: ON\r\n")
	assert.ErrorIs(t, err, ErrConfigUnparseable)
}

func TestDrain_StopsWhenIdleAfterData(t *testing.T) {
	dev := newFakeDevice(nil)
	dev.push("hello\r\n>> ")

	start := time.Now()
	got, err := drain(context.Background(), dev, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello\r\n>> ", got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDrain_WaitsForFirstByteUntilTimeout(t *testing.T) {
	dev := newFakeDevice(nil)

	start := time.Now()
	got, err := drain(context.Background(), dev, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDrain_BoundedForEndlessData(t *testing.T) {
	start := time.Now()
	got, err := drain(context.Background(), &chattyDevice{}, 30*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDrain_CapsReplySize(t *testing.T) {
	dev := newFakeDevice(nil)
	dev.push(strings.Repeat("x", 3*maxReplyBytes))

	got, err := drain(context.Background(), dev, time.Second)
	require.NoError(t, err)
	assert.Len(t, got, maxReplyBytes)
}

func TestDrain_ReadError(t *testing.T) {
	dev := newFakeDevice(nil)
	dev.fail(errors.New("unplugged"))

	_, err := drain(context.Background(), dev, time.Second)
	assert.EqualError(t, err, "unplugged")
}

func TestReset_SucceedsOnFirstPrompt(t *testing.T) {
	fw := newFirmware()
	dev := newFakeDevice(fw.respond)

	reply, err := reset(context.Background(), dev, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(reply, prompt))
	assert.Equal(t, 1, fw.resets)
}

func TestHandshakeError_Message(t *testing.T) {
	err := &HandshakeError{Stage: StageVersion, Response: "junk", Err: ErrFirmwareUnsupported}
	assert.Equal(t, `device: version handshake: device: firmware does not report a version (reply "junk")`, err.Error())
	assert.True(t, errors.Is(err, ErrFirmwareUnsupported))
}

func TestHandshakeError_TruncatesLongReply(t *testing.T) {
	reply := strings.Repeat("\xaa", 1000)
	err := &HandshakeError{Stage: StageReset, Response: reply, Err: ErrNoPrompt}

	msg := err.Error()
	assert.Less(t, len(msg), 700)
	assert.Contains(t, msg, "... 872 more bytes")
	assert.Equal(t, reply, err.Response)
}
