package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// AppFeatures is the ordered list of device capabilities encoded in a
// feature profile signature. The order is part of the wire format.
var AppFeatures = []string{
	"apps", "packaged_apps", "pay", "activity", "light_events", "archive",
	"battery", "bluetooth", "contacts", "device_storage", "indexeddb",
	"geolocation", "idle", "network_info", "network_stats", "proximity",
	"push", "orientation", "time_clock", "vibrate", "fm", "sms", "touch",
	"qhd", "mp3", "audio", "webaudio", "video_h264", "video_webm",
	"fullscreen", "gamepad", "quota", "camera", "mic", "screen_capture",
	"webrtc_media", "webrtc_data", "webrtc_peer", "speech_syn", "speech_rec",
	"pointer_lock", "notification", "alarm", "systemxhr", "tcpsocket",
	"thirdparty_keyboard_support", "network_info_multiple", "mobileid",
	"precompile_asmjs", "hardware_512mb_ram", "hardware_1gb_ram", "nfc",
}

// DeviceFeatureProfile is the set of capabilities a device reports.
type DeviceFeatureProfile struct {
	present map[string]bool
}

// ParseFeatureProfile decodes a "<hex bitmask>.<feature count>.<version>"
// signature. Only the first count features are described by the bitmask,
// with the first feature in the most significant bit; later features are
// treated as absent.
func ParseFeatureProfile(signature string) (*DeviceFeatureProfile, error) {
	invalid := func(msg string) error {
		return &ValidationError{Field: "pro", Message: msg}
	}

	parts := strings.Split(signature, ".")
	if len(parts) != 3 {
		return nil, invalid("signature must have three dot-separated parts")
	}

	bits, ok := new(big.Int).SetString(parts[0], 16)
	if !ok || bits.Sign() < 0 {
		return nil, invalid(fmt.Sprintf("%q is not a hexadecimal bitmask", parts[0]))
	}

	count, err := strconv.Atoi(parts[1])
	if err != nil || count < 0 || count > len(AppFeatures) {
		return nil, invalid(fmt.Sprintf("feature count %q out of range", parts[1]))
	}

	if _, err = strconv.Atoi(parts[2]); err != nil {
		return nil, invalid(fmt.Sprintf("version %q is not a number", parts[2]))
	}

	profile := &DeviceFeatureProfile{present: make(map[string]bool, len(AppFeatures))}
	for i := range count {
		profile.present[AppFeatures[i]] = bits.Bit(count-1-i) == 1
	}
	return profile, nil
}

// Has reports whether the device supports feature.
func (p *DeviceFeatureProfile) Has(feature string) bool {
	return p != nil && p.present[feature]
}

// Missing returns the features the device lacks, in signature order.
func (p *DeviceFeatureProfile) Missing() []string {
	var missing []string
	for _, f := range AppFeatures {
		if !p.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Signature re-encodes the profile against the full feature list.
func (p *DeviceFeatureProfile) Signature() string {
	bits := new(big.Int)
	n := len(AppFeatures)
	for i, f := range AppFeatures {
		if p.Has(f) {
			bits.SetBit(bits, n-1-i, 1)
		}
	}
	return fmt.Sprintf("%x.%d.%d", bits, n, 1)
}
