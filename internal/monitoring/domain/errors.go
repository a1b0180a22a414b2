package monitoring

import "errors"

// Device query failure taxonomy. The poller maps these onto retry/backoff
// behavior; everything else from a device client is treated as unreachable.
var (
	ErrDeviceUnreachable = errors.New("monitoring: device unreachable")
	ErrDeviceAuth        = errors.New("monitoring: device authentication failed")
	ErrMalformedResponse = errors.New("monitoring: malformed device response")
)
