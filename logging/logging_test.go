package logging_test

import (
	. "github.com/PelionIoT/tokenring/logging"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logging", func() {
	AfterEach(func() {
		SetLoggingLevel("error")
	})

	Describe("#LogLevelIsValid", func() {
		It("Should accept every level in any case", func() {
			for _, level := range []string{"critical", "error", "warning", "notice", "info", "debug", "INFO", "Debug"} {
				Expect(LogLevelIsValid(level)).Should(BeTrue())
			}
		})

		It("Should ignore surrounding whitespace", func() {
			Expect(LogLevelIsValid(" info\n")).Should(BeTrue())
		})

		It("Should reject unknown levels", func() {
			Expect(LogLevelIsValid("verbose")).Should(BeFalse())
			Expect(LogLevelIsValid("")).Should(BeFalse())
		})
	})

	Describe("#SetLoggingLevel", func() {
		It("Should be usable with the shared logger", func() {
			SetLoggingLevel("debug\n")
			Log.Debugf("logging at %s", "debug")
			SetLoggingLevel("not a level")
			Log.Errorf("logging at %s", "error")
		})
	})
})
