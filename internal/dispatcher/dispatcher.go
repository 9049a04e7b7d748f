// Package dispatcher is the outbound send path: a connectivity pre-flight, a
// per-instance rate limit, then the transport call, with the delivery result
// reported back for bookkeeping.
package dispatcher

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/your-org/salon-receptionist/internal/evolution"
)

// Transport is the slice of the provider client the dispatcher needs.
type Transport interface {
	CheckConnection(ctx context.Context, cred evolution.Credentials) bool
	SendText(ctx context.Context, cred evolution.Credentials, to, text string) error
}

type Dispatcher struct {
	transport Transport
	log       *logrus.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rateval  rate.Limit
	burst    int
}

func New(transport Transport, sendRate float64, burst int, log *logrus.Logger) *Dispatcher {
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		transport: transport,
		log:       log,
		limiters:  make(map[string]*rate.Limiter),
		rateval:   rate.Limit(sendRate),
		burst:     burst,
	}
}

func (d *Dispatcher) limiter(instance string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[instance]
	if !ok {
		l = rate.NewLimiter(d.rateval, d.burst)
		d.limiters[instance] = l
	}
	return l
}

// SendText dispatches a text reply. If the instance session is not connected
// the send is not attempted at all — failing fast beats a hung call against a
// dead session. Returns whether the message was delivered; failures are
// logged, never propagated.
func (d *Dispatcher) SendText(ctx context.Context, cred evolution.Credentials, to, text string) bool {
	fields := logrus.Fields{"instance": cred.Instance}

	if !d.transport.CheckConnection(ctx, cred) {
		d.log.WithFields(fields).Warn("instance not connected, send skipped")
		return false
	}
	if err := d.limiter(cred.Instance).Wait(ctx); err != nil {
		d.log.WithFields(fields).WithError(err).Warn("rate limit wait aborted")
		return false
	}
	if err := d.transport.SendText(ctx, cred, to, text); err != nil {
		d.log.WithFields(fields).WithError(err).Error("send text failed")
		return false
	}
	return true
}
