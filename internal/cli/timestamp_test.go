package cli

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTimestamp(t *testing.T) {
	Convey("Parsing seek targets", t, func() {
		for in, want := range map[string]int64{
			"90":      90000,
			"1:30":    90000,
			"1:02:03": 3723000,
			"0:05":    5000,
			"1m30s":   90000,
			"250ms":   250,
		} {
			got, err := parseTimestamp(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		for _, in := range []string{"", "abc", "1:75", "1:2:3:4", "-5", "-1s"} {
			_, err := parseTimestamp(in)
			So(err, ShouldNotBeNil)
		}
	})
}
