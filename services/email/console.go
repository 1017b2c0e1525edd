package emailsvc

import (
	"fmt"
	"io"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/pmajay/core"
)

var (
	sentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// SentMessages returns a copy of the messages delivered so far by the console services.
func SentMessages() []core.EmailMessage {
	mu.Lock()
	defer mu.Unlock()
	return append([]core.EmailMessage(nil), sentMessages...)
}

// ResetSentMessages forgets the delivered messages.
func ResetSentMessages() {
	mu.Lock()
	sentMessages = sentMessages[:0]
	mu.Unlock()
}

// consoleService prints emails instead of sending them (development).
type consoleService struct {
	from       mail.Address
	subjPrefix string
	out        io.Writer
	logger     core.Logger
	async      bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, out io.Writer, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		out:        out,
		logger:     logger,
		async:      true,
	}
}

// NewConsoleServiceMock records emails synchronously without printing them (tests).
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		out:        io.Discard,
		logger:     logger,
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.async {
			go svc.deliver(msg)
		} else {
			svc.deliver(msg)
		}
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering %s email: %v", msg.Kind, err), err)
		return
	}
	if !msg.Deliverable() {
		return
	}

	mu.Lock()
	sentMessages = append(sentMessages, *msg)
	mu.Unlock()

	if _, err := io.WriteString(svc.out, svc.format(*msg)); err != nil {
		svc.logger.Error(fmt.Sprintf("printing %s email: %v", msg.Kind, err), err)
	}
}

func (svc *consoleService) format(msg core.EmailMessage) string {
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", svc.from.String())
	fmt.Fprintf(&b, "To: %s\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Subject: %s\n", svc.subjPrefix+msg.Subject)
	fmt.Fprintf(&b, "X-Kind: %s\n", msg.Kind)
	if msg.ProjectID != "" {
		fmt.Fprintf(&b, "X-Project: %s\n", msg.ProjectID)
	}
	fmt.Fprintf(&b, "\n%s\n\n", msg.TextContent)
	return b.String()
}
