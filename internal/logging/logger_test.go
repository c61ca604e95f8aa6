package logging_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/logging"
)

var _ = Describe("Logger", func() {
	DescribeTable("takes its level from configuration",
		func(level string, enabled, disabled zapcore.Level) {
			v := config.NewEmptyViper()
			v.Set("logging.level", level)

			logger, err := logging.InitLogger(config.NewFromViper(v))

			Expect(err).NotTo(HaveOccurred())
			Expect(logger.Core().Enabled(enabled)).To(BeTrue())
			Expect(logger.Core().Enabled(disabled)).To(BeFalse())
		},
		Entry("debug", "debug", zapcore.DebugLevel, zapcore.DebugLevel-1),
		Entry("info", "info", zapcore.InfoLevel, zapcore.DebugLevel),
		Entry("warn", "warn", zapcore.WarnLevel, zapcore.InfoLevel),
		Entry("error", "error", zapcore.ErrorLevel, zapcore.WarnLevel),
		Entry("unknown falls back to info", "loud", zapcore.InfoLevel, zapcore.DebugLevel),
	)

	It("logs debug for a verbose console", func() {
		logger, err := logging.InitConsoleLogger(true, false)

		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Core().Enabled(zapcore.DebugLevel)).To(BeTrue())
	})

	It("logs info for a quiet console", func() {
		logger, err := logging.InitConsoleLogger(false, true)

		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Core().Enabled(zapcore.DebugLevel)).To(BeFalse())
	})
})
