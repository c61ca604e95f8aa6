package factory_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mikey/outreach-tracker/internal/adapters/intake"
	"github.com/mikey/outreach-tracker/internal/adapters/store"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/detector"
	"github.com/mikey/outreach-tracker/internal/factory"
)

var _ = Describe("Factories", func() {
	var (
		v      *viper.Viper
		cfg    *config.Config
		logger *zap.Logger
	)

	BeforeEach(func() {
		v = config.NewEmptyViper()
		cfg = config.NewFromViper(v)
		logger = zap.NewNop()
	})

	Describe("StoreFactory", func() {
		It("creates an in-memory store", func() {
			v.Set("store.type", "memory")

			s, err := factory.NewStoreFactory(cfg, logger).CreateTrackingStore()

			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(BeAssignableToTypeOf(&store.MemoryStore{}))
		})

		It("creates a SQLite store and its directory", func() {
			v.Set("store.type", "sqlite")
			v.Set("store.sqlite_path", filepath.Join(GinkgoT().TempDir(), "nested", "outreach.db"))

			s, err := factory.NewStoreFactory(cfg, logger).CreateTrackingStore()

			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(BeAssignableToTypeOf(&store.SQLStore{}))
			Expect(s.Close()).To(Succeed())
		})

		It("rejects unknown store types", func() {
			v.Set("store.type", "redis")

			_, err := factory.NewStoreFactory(cfg, logger).CreateTrackingStore()

			Expect(err).To(MatchError(ContainSubstring("unsupported store type")))
		})

		It("sizes the processed set from configuration", func() {
			v.Set("reply_monitor.processed_limit", 2)
			set := factory.NewStoreFactory(cfg, logger).CreateProcessedSet()

			set.Add("a")
			set.Add("b")
			Expect(set.Len()).To(Equal(2))
			set.Add("c")
			Expect(set.Len()).To(BeZero())
		})
	})

	Describe("IntakeFactory", func() {
		var f *factory.IntakeFactory

		BeforeEach(func() {
			v.Set("store.type", "memory")
			stores := factory.NewStoreFactory(cfg, logger)
			s, err := stores.CreateTrackingStore()
			Expect(err).NotTo(HaveOccurred())

			parsers := factory.NewParserFactory(logger)
			text := parsers.CreateTextProcessor()
			service := core.NewReplyService(s, s, stores.CreateProcessedSet(), logger)
			f = factory.NewIntakeFactory(cfg, logger, service, parsers.CreateMessageParser(text), text)
		})

		It("creates nothing by default", func() {
			intakes, err := f.CreateReplyIntakes()

			Expect(err).NotTo(HaveOccurred())
			Expect(intakes).To(BeEmpty())
		})

		It("creates a detector and an SMTP intake when enabled", func() {
			v.Set("reply_monitor.enabled", true)
			v.Set("imap.username", "outreach@example.com")
			v.Set("smtp_intake.enabled", true)

			intakes, err := f.CreateReplyIntakes()

			Expect(err).NotTo(HaveOccurred())
			Expect(intakes).To(HaveLen(2))
			Expect(intakes[0]).To(BeAssignableToTypeOf(&detector.Detector{}))
			Expect(intakes[1]).To(BeAssignableToTypeOf(&intake.SMTPIntake{}))
		})

		It("skips the detector when mailbox credentials are missing", func() {
			v.Set("reply_monitor.enabled", true)
			v.Set("smtp_intake.enabled", true)

			intakes, err := f.CreateReplyIntakes()

			Expect(err).NotTo(HaveOccurred())
			Expect(intakes).To(HaveLen(1))
			Expect(intakes[0]).To(BeAssignableToTypeOf(&intake.SMTPIntake{}))
		})

		It("reports missing mailbox credentials when building the detector", func() {
			monitorCfg, err := cfg.GetReplyMonitor()
			Expect(err).NotTo(HaveOccurred())

			_, err = f.CreateDetector(monitorCfg)

			Expect(err).To(MatchError(ContainSubstring("imap.username")))
		})

		It("fails on a malformed scan interval", func() {
			v.Set("reply_monitor.scan_interval", "sometimes")

			_, err := f.CreateReplyIntakes()

			Expect(err).To(HaveOccurred())
		})

		DescribeTable("builds the CLI intake from configuration",
			func(apply bool) {
				v.Set("cli.apply", apply)
				Expect(f.CreateCLIIntake()).NotTo(BeNil())
			},
			Entry("dry run", false),
			Entry("apply", true),
		)
	})
})
