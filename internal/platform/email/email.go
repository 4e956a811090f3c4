package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type Security string

const (
	SecurityImplicit Security = "implicit"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

var (
	ErrSendFailed    = errors.New("send failed")
	errSessionBroken = errors.New("smtp session is no longer usable")
)

// SendError is every delivery failure: dial, tls, auth, relay rejection or a
// timed out write. Stage names the SMTP step that failed.
type SendError struct {
	Stage string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed at %s: %v", e.Stage, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}

type Credentials struct {
	Username string
	Password string
}

type Dialer struct {
	Host      string
	Port      int
	Security  Security
	Timeout   time.Duration
	TLSConfig *tls.Config
	// Limiter paces Send calls across every session from this dialer.
	Limiter *rate.Limiter
}

func NewDialer(host string, port int, security Security, timeout time.Duration, perSecond float64) *Dialer {
	d := &Dialer{Host: host, Port: port, Security: security, Timeout: timeout}
	if perSecond > 0 {
		d.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return d
}

// Dial opens an authenticated session. Credentials are used for this session
// only and are not kept on the dialer.
func (d *Dialer) Dial(ctx context.Context, creds Credentials) (*Session, error) {
	timeout := d.timeout()
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))

	nd := net.Dialer{Timeout: timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &SendError{Stage: "dial", Err: err}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if d.Security == SecurityImplicit {
		tlsConn := tls.Client(conn, d.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, &SendError{Stage: "tls", Err: err}
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, d.Host)
	if err != nil {
		_ = conn.Close()
		return nil, &SendError{Stage: "greeting", Err: ctxErr(ctx, err)}
	}

	if d.Security == SecurityStartTLS {
		if err := client.StartTLS(d.tlsConfig()); err != nil {
			_ = client.Close()
			return nil, &SendError{Stage: "starttls", Err: ctxErr(ctx, err)}
		}
	}

	if creds.Username != "" {
		auth := smtp.PlainAuth("", creds.Username, creds.Password, d.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, &SendError{Stage: "auth", Err: ctxErr(ctx, err)}
		}
	}

	_ = conn.SetDeadline(time.Time{})
	return &Session{client: client, conn: conn, timeout: timeout, limiter: d.Limiter}, nil
}

func (d *Dialer) timeout() time.Duration {
	if d.Timeout <= 0 {
		return 30 * time.Second
	}
	return d.Timeout
}

func (d *Dialer) tlsConfig() *tls.Config {
	if d.TLSConfig != nil {
		return d.TLSConfig
	}
	return &tls.Config{ServerName: d.Host, MinVersion: tls.VersionTLS12}
}

// Session is one authenticated relay connection, reused for many messages.
// It is not safe for concurrent use.
type Session struct {
	client  *smtp.Client
	conn    net.Conn
	timeout time.Duration
	limiter *rate.Limiter
	broken  bool
	sent    int
}

// Send transmits msg once. Each call is bounded by the session timeout and by
// ctx. A relay rejection leaves the session usable; anything else breaks it.
func (s *Session) Send(ctx context.Context, msg *Message) error {
	if s.broken {
		return &SendError{Stage: "session", Err: errSessionBroken}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return &SendError{Stage: "rate", Err: err}
		}
	}
	payload, err := msg.Bytes()
	if err != nil {
		return &SendError{Stage: "compose", Err: err}
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	stage, err := s.transmit(msg.From, msg.To, payload)
	if err != nil {
		s.recover(ctx, err)
		return &SendError{Stage: stage, Err: ctxErr(ctx, err)}
	}
	_ = s.conn.SetDeadline(time.Time{})
	s.sent++
	return nil
}

func (s *Session) transmit(from, to string, payload []byte) (string, error) {
	if err := s.client.Mail(from); err != nil {
		return "mail", err
	}
	if err := s.client.Rcpt(to); err != nil {
		return "rcpt", err
	}
	w, err := s.client.Data()
	if err != nil {
		return "data", err
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "data", err
	}
	if err := w.Close(); err != nil {
		return "data", err
	}
	return "", nil
}

func (s *Session) recover(ctx context.Context, err error) {
	var protoErr *textproto.Error
	if ctx.Err() == nil && errors.As(err, &protoErr) {
		_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
		if s.client.Reset() == nil {
			_ = s.conn.SetDeadline(time.Time{})
			return
		}
	}
	s.broken = true
}

func (s *Session) Healthy() bool {
	return !s.broken
}

func (s *Session) Sent() int {
	return s.sent
}

func (s *Session) Close() error {
	if s.broken {
		return s.client.Close()
	}
	_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	if err := s.client.Quit(); err != nil {
		_ = s.client.Close()
		return err
	}
	return nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}
