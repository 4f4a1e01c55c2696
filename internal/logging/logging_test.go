package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSetup(t *testing.T) {
	Convey("JSON format writes one object per entry", t, func() {
		var buf bytes.Buffer
		So(Setup("debug", FormatJSON, &buf), ShouldBeNil)
		So(log.GetLevel(), ShouldEqual, log.DebugLevel)

		log.WithField("kind", "hls").Info("transport attached")

		var entry map[string]any
		So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
		So(entry["msg"], ShouldEqual, "transport attached")
		So(entry["kind"], ShouldEqual, "hls")
	})

	Convey("An unknown level falls back to info", t, func() {
		var buf bytes.Buffer
		So(Setup("chatty", FormatText, &buf), ShouldNotBeNil)
		So(log.GetLevel(), ShouldEqual, log.InfoLevel)
	})
}
