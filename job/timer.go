package job

import "time"

// paymentTimer is a single re-armable deferred callback. Every arm and disarm starts a
// new generation; a callback whose generation is no longer current must do nothing.
type paymentTimer struct {
	t       *time.Timer
	gen     uint64
	invoice string
}

func (p *paymentTimer) arm(d time.Duration, invoice string, fire func(gen uint64)) {
	p.disarm()
	gen := p.gen
	p.invoice = invoice
	p.t = time.AfterFunc(d, func() { fire(gen) })
}

func (p *paymentTimer) disarm() {
	if p.t != nil {
		p.t.Stop()
		p.t = nil
	}
	p.invoice = ""
	p.gen++
}

// armedFor reports whether the timer is running for invoice.
func (p *paymentTimer) armedFor(invoice string) bool {
	return p.t != nil && p.invoice == invoice
}

func (p *paymentTimer) current(gen uint64) bool {
	return p.t != nil && p.gen == gen
}
