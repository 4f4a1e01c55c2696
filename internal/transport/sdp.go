package transport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// DefaultOpusBitrate is the maxaveragebitrate asked for in the offer.
const DefaultOpusBitrate = 510000

// RewriteOpus sets stereo=1, sprop-stereo=1 and maxaveragebitrate on every
// Opus payload type of the audio sections. Applying it twice gives the same
// result as applying it once.
func RewriteOpus(offer string, bitrate int) (string, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(offer)); err != nil {
		return "", fmt.Errorf("parse offer: %w", err)
	}
	if bitrate <= 0 {
		bitrate = DefaultOpusBitrate
	}

	want := [][2]string{
		{"stereo", "1"},
		{"sprop-stereo", "1"},
		{"maxaveragebitrate", strconv.Itoa(bitrate)},
	}

	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		for _, pt := range opusPayloadTypes(md) {
			prefix := pt + " "
			found := false
			for i, a := range md.Attributes {
				if a.Key == "fmtp" && strings.HasPrefix(a.Value, prefix) {
					md.Attributes[i].Value = prefix + setParams(strings.TrimPrefix(a.Value, prefix), want)
					found = true
				}
			}
			if !found {
				md.Attributes = append(md.Attributes, sdp.NewAttribute("fmtp", prefix+setParams("", want)))
			}
		}
	}

	out, err := sd.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode offer: %w", err)
	}
	return string(out), nil
}

func opusPayloadTypes(md *sdp.MediaDescription) []string {
	var pts []string
	for _, a := range md.Attributes {
		if a.Key != "rtpmap" {
			continue
		}
		pt, codec, ok := strings.Cut(a.Value, " ")
		if ok && strings.HasPrefix(strings.ToLower(codec), "opus/") {
			pts = append(pts, pt)
		}
	}
	return pts
}

// setParams updates or appends key=value pairs in an fmtp parameter list,
// keeping the order of existing parameters.
func setParams(params string, want [][2]string) string {
	var parts []string
	if params != "" {
		parts = strings.Split(params, ";")
	}
	for _, kv := range want {
		replaced := false
		for i, p := range parts {
			k, _, _ := strings.Cut(strings.TrimSpace(p), "=")
			if k == kv[0] {
				parts[i] = kv[0] + "=" + kv[1]
				replaced = true
			}
		}
		if !replaced {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, ";")
}
