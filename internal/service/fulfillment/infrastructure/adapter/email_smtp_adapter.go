// internal/service/fulfillment/infrastructure/adapter/email_smtp_adapter.go
package adapter

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// 单次 SMTP 投递的兜底超时，对齐 kafka 通道的写超时量级。
const defaultSendTimeout = 10 * time.Second

// SMTPConfig 是邮件通道的静态配置，构造时注入。
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Pass       string
	From       string
	Recipients []string
	// 整个 SMTP 会话的超时，零值回退到 defaultSendTimeout
	Timeout time.Duration
}

// EmailEscalationAdapter 实现了 port.EscalationChannel 接口，
// 把失败摘要渲染成纯文本邮件发给运营收件组。
type EmailEscalationAdapter struct {
	cfg  SMTPConfig
	send func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailEscalationAdapter 创建邮件通道。
func NewEmailEscalationAdapter(cfg SMTPConfig) *EmailEscalationAdapter {
	return &EmailEscalationAdapter{cfg: cfg, send: sendMailBounded}
}

func (a *EmailEscalationAdapter) Name() string {
	return "email"
}

// Send 渲染并发送邮件。没有配置收件人视为通道关闭，静默成功。
// 整个 SMTP 会话受超时约束：编排器在消费循环里同步调用这里，
// 一个卡死的邮件服务器绝不能拖住履约运行。
func (a *EmailEscalationAdapter) Send(ctx context.Context, payload *port.EscalationPayload) error {
	if len(a.cfg.Recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[fulfillment] order %s: %d of %d products failed",
		payload.OrderNumber, payload.FailedProducts, payload.TotalProducts)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", a.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(a.cfg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")

	fmt.Fprintf(&b, "Order:    %s (id %d)\r\n", payload.OrderNumber, payload.OrderID)
	fmt.Fprintf(&b, "Customer: %s\r\n", payload.CustomerEmail)
	fmt.Fprintf(&b, "Products: %d total, %d fulfilled, %d failed\r\n\r\n",
		payload.TotalProducts, payload.FulfilledProducts, payload.FailedProducts)

	for _, item := range payload.Items {
		status := "OK"
		if !item.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s) x%d\r\n", status, item.ProductTitle, item.ProductID, item.Quantity)
		if !item.Success {
			fmt.Fprintf(&b, "    category: %s\r\n", item.Category)
			fmt.Fprintf(&b, "    error:    %s\r\n", item.ErrorMessage)
			if item.CorrelationID != "" {
				fmt.Fprintf(&b, "    correlation-id: %s\r\n", item.CorrelationID)
			}
			if item.RequestID != "" {
				fmt.Fprintf(&b, "    request-id:     %s\r\n", item.RequestID)
			}
		}
	}

	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	var auth smtp.Auth
	if a.cfg.User != "" {
		auth = smtp.PlainAuth("", a.cfg.User, a.cfg.Pass, a.cfg.Host)
	}
	return a.send(ctx, addr, auth, a.cfg.From, a.cfg.Recipients, []byte(b.String()))
}

// sendMailBounded 是 smtp.SendMail 的受约束版本：连接经 DialContext 建立，
// 会话中的每次读写都受 ctx 的截止时间约束。服务器卡在任何一步
// （包括迟迟不发 greeting）都会在截止时间到达时失败返回。
func sendMailBounded(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
