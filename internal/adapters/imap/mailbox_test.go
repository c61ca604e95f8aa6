package imap_test

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	mailbox "github.com/mikey/outreach-tracker/internal/adapters/imap"
	"github.com/mikey/outreach-tracker/internal/config"
)

const (
	testUser = "outreach"
	testPass = "secret"
)

const replyMessage = "From: bride@example.com\r\n" +
	"To: sales@caterer.example\r\n" +
	"Subject: Re: Our wedding catering quote\r\n" +
	"Message-ID: <reply-1@example.com>\r\n" +
	"\r\n" +
	"Sounds great.\r\n"

type recordedEvents struct {
	mu      sync.Mutex
	ready   int
	newMail int
	errs    []error
	ended   int
}

func (r *recordedEvents) OnReady()          { r.mu.Lock(); r.ready++; r.mu.Unlock() }
func (r *recordedEvents) OnNewMail()        { r.mu.Lock(); r.newMail++; r.mu.Unlock() }
func (r *recordedEvents) OnError(err error) { r.mu.Lock(); r.errs = append(r.errs, err); r.mu.Unlock() }
func (r *recordedEvents) OnEnd()            { r.mu.Lock(); r.ended++; r.mu.Unlock() }

func (r *recordedEvents) counts() (ready, ended, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready, r.ended, len(r.errs)
}

func startServer() (string, *imapserver.Server) {
	memSrv := imapmemserver.New()
	user := imapmemserver.NewUser(testUser, testPass)
	Expect(user.Create("INBOX", nil)).To(Succeed())
	memSrv.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(_ *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memSrv.NewSession(), nil, nil
		},
		InsecureAuth: true,
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	go srv.Serve(ln)

	return ln.Addr().String(), srv
}

func appendMail(addr, raw string) {
	conn, err := net.Dial("tcp", addr)
	Expect(err).NotTo(HaveOccurred())
	c := imapclient.New(conn, nil)
	defer c.Close()
	Expect(c.Login(testUser, testPass).Wait()).To(Succeed())

	cmd := c.Append("INBOX", int64(len(raw)), nil)
	_, err = cmd.Write([]byte(raw))
	Expect(err).NotTo(HaveOccurred())
	Expect(cmd.Close()).To(Succeed())
	_, err = cmd.Wait()
	Expect(err).NotTo(HaveOccurred())
}

func configFor(addr string) config.IMAPConfig {
	host, portStr, err := net.SplitHostPort(addr)
	Expect(err).NotTo(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).NotTo(HaveOccurred())
	return config.IMAPConfig{
		Host:     host,
		Port:     port,
		Security: mailbox.SecurityNone,
		Username: testUser,
		Password: testPass,
	}
}

var _ = Describe("Mailbox", func() {
	var (
		ctx    context.Context
		addr   string
		srv    *imapserver.Server
		events *recordedEvents
		mb     *mailbox.Mailbox
	)

	BeforeEach(func() {
		ctx = context.Background()
		addr, srv = startServer()
		events = &recordedEvents{}
		mb = mailbox.NewMailbox(configFor(addr), "INBOX", true, zap.NewNop())
	})

	AfterEach(func() {
		Expect(mb.Close()).To(Succeed())
		srv.Close()
	})

	It("reports readiness after connecting", func() {
		Expect(mb.Connect(ctx, events)).To(Succeed())

		ready, ended, errs := events.counts()
		Expect(ready).To(Equal(1))
		Expect(ended).To(BeZero())
		Expect(errs).To(BeZero())
	})

	It("fails to connect with bad credentials", func() {
		cfg := configFor(addr)
		cfg.Password = "wrong"
		bad := mailbox.NewMailbox(cfg, "INBOX", false, zap.NewNop())

		Expect(bad.Connect(ctx, events)).NotTo(Succeed())
		ready, _, _ := events.counts()
		Expect(ready).To(BeZero())
	})

	It("fails to connect to a missing folder", func() {
		missing := mailbox.NewMailbox(configFor(addr), "Replies", false, zap.NewNop())
		Expect(missing.Connect(ctx, events)).NotTo(Succeed())
	})

	It("rejects commands before connecting", func() {
		_, err := mb.SearchUnseen(ctx, time.Now().Add(-24*time.Hour))
		Expect(err).To(MatchError(mailbox.ErrNotConnected))
		_, err = mb.WatchNewMail()
		Expect(err).To(MatchError(mailbox.ErrNotConnected))
	})

	It("finds unread mail, fetches it and marks it seen", func() {
		appendMail(addr, replyMessage)
		Expect(mb.Connect(ctx, events)).To(Succeed())

		since := time.Now().Add(-24 * time.Hour)
		uids, err := mb.SearchUnseen(ctx, since)
		Expect(err).NotTo(HaveOccurred())
		Expect(uids).To(HaveLen(1))

		msgs, err := mb.FetchAndMarkSeen(ctx, uids)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].UID).To(Equal(uids[0]))
		Expect(string(msgs[0].Body)).To(ContainSubstring("Subject: Re: Our wedding catering quote"))

		uids, err = mb.SearchUnseen(ctx, since)
		Expect(err).NotTo(HaveOccurred())
		Expect(uids).To(BeEmpty())
	})

	It("returns nothing for an empty uid list", func() {
		Expect(mb.Connect(ctx, events)).To(Succeed())
		msgs, err := mb.FetchAndMarkSeen(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())
	})

	It("falls back to a no-op watch without IDLE support", func() {
		Expect(mb.Connect(ctx, events)).To(Succeed())
		watch, err := mb.WatchNewMail()
		Expect(err).NotTo(HaveOccurred())
		Expect(watch.Stop()).To(Succeed())
	})

	It("ends quietly on a requested close", func() {
		Expect(mb.Connect(ctx, events)).To(Succeed())
		Expect(mb.Close()).To(Succeed())

		Eventually(func() int { _, ended, _ := events.counts(); return ended }).Should(Equal(1))
		_, _, errs := events.counts()
		Expect(errs).To(BeZero())
	})

	It("reports an error when the server drops the connection", func() {
		Expect(mb.Connect(ctx, events)).To(Succeed())
		srv.Close()

		Eventually(func() int { _, ended, _ := events.counts(); return ended }, 5*time.Second).Should(Equal(1))
		events.mu.Lock()
		defer events.mu.Unlock()
		Expect(events.errs).To(ContainElement(MatchError(mailbox.ErrConnectionLost)))
	})
})
