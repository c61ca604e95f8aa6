package di

import (
	"flag"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mikey/outreach-tracker/internal/adapters/intake"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	httpserver "github.com/mikey/outreach-tracker/internal/http"
	"github.com/mikey/outreach-tracker/internal/ports"
)

var _ = Describe("Containers", func() {
	It("wires the daemon", func() {
		Expect(os.Setenv("OUTREACH_STORE_TYPE", "memory")).To(Succeed())
		DeferCleanup(os.Unsetenv, "OUTREACH_STORE_TYPE")

		container, err := BuildContainer()
		Expect(err).NotTo(HaveOccurred())

		Expect(container.Invoke(func(
			intakes []ports.ReplyIntake,
			server *httpserver.Server,
			store core.TrackingStore,
			service *core.ReplyService,
		) {
			Expect(intakes).To(BeEmpty())
			Expect(server).NotTo(BeNil())
			Expect(service).NotTo(BeNil())
			Expect(store.Close()).To(Succeed())
		})).To(Succeed())
	})

	It("parses reply-check flags", func() {
		flags := &CLIFlags{}
		fs := flag.NewFlagSet("reply-check", flag.ContinueOnError)
		registerFlags(fs, flags)

		Expect(fs.Parse([]string{"-store-type", "memory", "-apply", "-file", "reply.eml"})).To(Succeed())

		Expect(flags.StoreType).To(Equal("memory"))
		Expect(flags.Apply).To(BeTrue())
		Expect(flags.Verbose).To(BeFalse())
		Expect(flags.InputFile).To(Equal("reply.eml"))
		Expect(flags.SQLitePath).To(Equal("/data/outreach.db"))
	})

	It("wires the CLI from flags", func() {
		container, err := BuildCLIContainer(&CLIFlags{StoreType: "memory", Apply: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(container.Invoke(func(cfg *config.Config, cli *intake.CLIIntake) {
			Expect(cfg.GetStore().Type).To(Equal("memory"))
			Expect(cfg.GetBool("cli.apply")).To(BeTrue())
			Expect(cli).NotTo(BeNil())
		})).To(Succeed())
	})

	It("lets flags override a config file for the CLI", func() {
		path := GinkgoT().TempDir() + "/config.yaml"
		Expect(os.WriteFile(path, []byte("store:\n  type: memory\n"), 0o600)).To(Succeed())

		container, err := BuildCLIContainer(&CLIFlags{ConfigFile: path, Verbose: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(container.Invoke(func(cfg *config.Config) {
			Expect(cfg.GetStore().Type).To(Equal("memory"))
			Expect(cfg.GetBool("cli.verbose")).To(BeTrue())
		})).To(Succeed())
	})
})
