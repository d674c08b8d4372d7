package logger

import (
	"bytes"
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing JSON to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithOptions(Options{Output: &buf, JSON: true}), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging at info", func() {
			Get().Info(ctx, "rated chart", String("job", "abc"), Float64("overall", 21.5))

			Convey("Then fields and source are written", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, `"msg":"rated chart"`)
				So(out, ShouldContainSubstring, `"job":"abc"`)
				So(out, ShouldContainSubstring, `"overall":21.5`)
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging at debug under the default level", func() {
			Get().Debug(ctx, "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the level is lowered to debug", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Named("calc").Debug(ctx, "window", Int("index", 3))

			Convey("Then debug entries carry the component", func() {
				So(buf.String(), ShouldContainSubstring, `"component":"calc"`)
				So(buf.String(), ShouldContainSubstring, `"index":3`)
			})
		})

		Convey("When an unknown level is set", func() {
			Convey("Then an error is returned", func() {
				So(SetLevelString("loud"), ShouldNotBeNil)
			})
		})

		Reset(func() {
			SetLevelString("info")
		})
	})

	Convey("Given the nop logger", t, func() {
		l := Nop()

		Convey("Then logging and naming are safe", func() {
			So(func() {
				l.Info(context.Background(), "x")
				l.Named("y").Warn(context.Background(), "z")
			}, ShouldNotPanic)
		})
	})

	Convey("Given Sync", t, func() {
		So(Sync(), ShouldBeNil)
	})
}
