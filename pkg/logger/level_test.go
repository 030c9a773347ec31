package logger_test

import (
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

var _ = Describe("Levels", func() {
	It("should be ordered from TRACE to CRITICAL", func() {
		Expect(logger.LevelTrace).To(BeNumerically("<", logger.LevelDebug))
		Expect(logger.LevelDebug).To(BeNumerically("<", logger.LevelInfo))
		Expect(logger.LevelInfo).To(BeNumerically("<", logger.LevelWarning))
		Expect(logger.LevelWarning).To(BeNumerically("<", logger.LevelError))
		Expect(logger.LevelError).To(BeNumerically("<", logger.LevelCritical))
	})

	DescribeTable("LevelName",
		func(level slog.Level, expected string) {
			Expect(logger.LevelName(level)).To(Equal(expected))
		},
		Entry("trace", logger.LevelTrace, "TRACE"),
		Entry("debug", logger.LevelDebug, "DEBUG"),
		Entry("info", logger.LevelInfo, "INFO"),
		Entry("warning", logger.LevelWarning, "WARNING"),
		Entry("error", logger.LevelError, "ERROR"),
		Entry("critical", logger.LevelCritical, "CRITICAL"),
		Entry("between info and warning", logger.LevelInfo+2, "INFO+2"),
		Entry("above critical", logger.LevelCritical+3, "CRITICAL+3"),
		Entry("below trace", logger.LevelTrace-2, "TRACE-2"),
	)

	DescribeTable("ParseLevel",
		func(input string, expected slog.Level, ok bool) {
			level, parsed := logger.ParseLevel(input)
			Expect(parsed).To(Equal(ok))
			Expect(level).To(Equal(expected))
		},
		Entry("trace", "trace", logger.LevelTrace, true),
		Entry("debug", "debug", logger.LevelDebug, true),
		Entry("info", "info", logger.LevelInfo, true),
		Entry("success maps to info", "success", logger.LevelInfo, true),
		Entry("warn", "warn", logger.LevelWarning, true),
		Entry("warning", "WARNING", logger.LevelWarning, true),
		Entry("error", "Error", logger.LevelError, true),
		Entry("critical", "CRITICAL", logger.LevelCritical, true),
		Entry("fatal maps to critical", "fatal", logger.LevelCritical, true),
		Entry("surrounding whitespace", "  debug ", logger.LevelDebug, true),
		Entry("unknown defaults to info", "verbose", logger.LevelInfo, false),
		Entry("empty defaults to info", "", logger.LevelInfo, false),
	)
})
