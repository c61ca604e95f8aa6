package core_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/mikey/outreach-tracker/internal/adapters/cache"
	"github.com/mikey/outreach-tracker/internal/core"
)

var _ = Describe("IsReply", func() {
	DescribeTable("classifies messages by subject and threading headers",
		func(msg core.InboundMessage, expected bool) {
			Expect(core.IsReply(&msg)).To(Equal(expected))
		},
		Entry("plain subject", core.InboundMessage{Subject: "Quote request"}, false),
		Entry("empty message", core.InboundMessage{}, false),
		Entry("Re: prefix", core.InboundMessage{Subject: "Re: Our wedding catering quote"}, true),
		Entry("upper case RE:", core.InboundMessage{Subject: "RE: pricing"}, true),
		Entry("re: anywhere in subject", core.InboundMessage{Subject: "Fwd: re: pricing"}, true),
		Entry("in-reply-to only", core.InboundMessage{Subject: "Quote request", InReplyTo: "abc@example.com"}, true),
		Entry("references only", core.InboundMessage{Subject: "Quote request", References: []string{"abc@example.com"}}, true),
		Entry("empty references", core.InboundMessage{Subject: "Quote request", References: []string{}}, false),
	)

	It("never turns a reply into a non-reply when a signal is added", func() {
		base := core.InboundMessage{Subject: "Quote request"}
		Expect(core.IsReply(&base)).To(BeFalse())

		for _, mutate := range []func(*core.InboundMessage){
			func(m *core.InboundMessage) { m.Subject = "Re: " + m.Subject },
			func(m *core.InboundMessage) { m.InReplyTo = "x@example.com" },
			func(m *core.InboundMessage) { m.References = []string{"x@example.com"} },
		} {
			msg := base
			mutate(&msg)
			Expect(core.IsReply(&msg)).To(BeTrue())
		}
	})
})

var _ = Describe("ReplyService", func() {
	var (
		ctx       context.Context
		store     *countingStore
		processed *cache.MemorySet
		svc       *core.ReplyService
	)

	bride := core.TrackedContact{Email: "bride@example.com", Name: "Bride", Status: "sent"}

	replyFrom := func(from, id string) *core.InboundMessage {
		return &core.InboundMessage{
			From:      from,
			Subject:   "Re: Our wedding catering quote",
			MessageID: id,
			Source:    core.SourceIMAP,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newCountingStore(bride)
		processed = cache.NewMemorySet(cache.DefaultLimit, zap.NewNop())
		svc = core.NewReplyService(store, store, processed, zap.NewNop())
	})

	It("marks a tracked contact as replied and logs one reply event", func() {
		outcome := svc.Process(ctx, replyFrom("Bride@Example.com", "m1@example.com"))

		Expect(outcome).To(Equal(core.OutcomeReplyUpdated))
		c := store.contact("bride@example.com")
		Expect(c.HasReplied).To(BeTrue())
		Expect(c.ReplyDate).NotTo(BeNil())

		Expect(store.events).To(HaveLen(1))
		event := store.events[0]
		Expect(event.EventType).To(Equal(core.EventTypeReply))
		Expect(event.Email).To(Equal("bride@example.com"))
		Expect(event.ID).NotTo(BeEmpty())
		Expect(event.Metadata.AutoDetected).To(BeTrue())
		Expect(event.Metadata.Subject).To(Equal("Re: Our wedding catering quote"))
		Expect(event.Metadata.DetectedAt).NotTo(BeZero())
		Expect(event.Metadata.MessageID).To(Equal("m1@example.com"))
		Expect(processed.Contains("m1@example.com")).To(BeTrue())
	})

	It("makes no store calls and leaves the set alone without a sender", func() {
		msg := replyFrom("   ", "m1@example.com")

		Expect(svc.Process(ctx, msg)).To(Equal(core.OutcomeNoSender))
		Expect(store.calls()).To(BeZero())
		Expect(processed.Len()).To(BeZero())
	})

	It("ignores messages that are not replies", func() {
		msg := &core.InboundMessage{From: "bride@example.com", Subject: "Quote request", MessageID: "m2@example.com"}

		Expect(svc.Process(ctx, msg)).To(Equal(core.OutcomeNotAReply))
		Expect(store.calls()).To(BeZero())
		Expect(store.contact("bride@example.com").HasReplied).To(BeFalse())
		Expect(processed.Len()).To(BeZero())
	})

	It("processes the same message id only once", func() {
		Expect(svc.Process(ctx, replyFrom("bride@example.com", "m1@example.com"))).To(Equal(core.OutcomeReplyUpdated))
		callsAfterFirst := store.calls()

		Expect(svc.Process(ctx, replyFrom("bride@example.com", "m1@example.com"))).To(Equal(core.OutcomeDuplicate))
		Expect(store.calls()).To(Equal(callsAfterFirst))
		Expect(store.updates).To(Equal(1))
		Expect(store.events).To(HaveLen(1))
	})

	It("remembers unknown senders without updating anything", func() {
		outcome := svc.Process(ctx, replyFrom("stranger@example.com", "m3@example.com"))

		Expect(outcome).To(Equal(core.OutcomeContactNotFound))
		Expect(store.updates).To(BeZero())
		Expect(store.events).To(BeEmpty())
		Expect(processed.Contains("m3@example.com")).To(BeTrue())

		Expect(svc.Process(ctx, replyFrom("stranger@example.com", "m3@example.com"))).To(Equal(core.OutcomeDuplicate))
	})

	It("does not remember a message whose update failed", func() {
		store.updateErr = errors.New("database is locked")

		Expect(svc.Process(ctx, replyFrom("bride@example.com", "m4@example.com"))).To(Equal(core.OutcomeUpdateFailed))
		Expect(processed.Contains("m4@example.com")).To(BeFalse())
		Expect(store.events).To(BeEmpty())

		store.updateErr = nil
		Expect(svc.Process(ctx, replyFrom("bride@example.com", "m4@example.com"))).To(Equal(core.OutcomeReplyUpdated))
	})

	It("treats lookup errors other than not found as update failures", func() {
		store.getErr = errors.New("connection refused")

		Expect(svc.Process(ctx, replyFrom("bride@example.com", "m5@example.com"))).To(Equal(core.OutcomeUpdateFailed))
		Expect(processed.Contains("m5@example.com")).To(BeFalse())
	})

	It("still reports the update when the event log fails", func() {
		store.appendErr = errors.New("disk full")

		Expect(svc.Process(ctx, replyFrom("bride@example.com", "m6@example.com"))).To(Equal(core.OutcomeReplyUpdated))
		Expect(store.contact("bride@example.com").HasReplied).To(BeTrue())
		Expect(processed.Contains("m6@example.com")).To(BeTrue())
	})

	It("processes messages without a message id every time", func() {
		Expect(svc.Process(ctx, replyFrom("bride@example.com", ""))).To(Equal(core.OutcomeReplyUpdated))
		Expect(svc.Process(ctx, replyFrom("bride@example.com", ""))).To(Equal(core.OutcomeReplyUpdated))
		Expect(store.events).To(HaveLen(2))
		Expect(processed.Len()).To(BeZero())
	})

	Describe("DryRun", func() {
		It("reports the outcome without writing", func() {
			outcome, contact := svc.DryRun(ctx, replyFrom("bride@example.com", "m7@example.com"))

			Expect(outcome).To(Equal(core.OutcomeReplyUpdated))
			Expect(contact).NotTo(BeNil())
			Expect(contact.Email).To(Equal("bride@example.com"))
			Expect(store.updates).To(BeZero())
			Expect(store.events).To(BeEmpty())
			Expect(processed.Len()).To(BeZero())
		})

		It("reports unknown senders", func() {
			outcome, contact := svc.DryRun(ctx, replyFrom("stranger@example.com", "m8@example.com"))

			Expect(outcome).To(Equal(core.OutcomeContactNotFound))
			Expect(contact).To(BeNil())
		})
	})
})
