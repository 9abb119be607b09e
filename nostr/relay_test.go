package nostr_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	goNostr "github.com/nbd-wtf/go-nostr"
)

// testRelay is a minimal NIP-01 relay: it answers EVENT with OK and serves its stored
// events to every REQ followed by EOSE.
type testRelay struct {
	srv    *httptest.Server
	accept bool
	stored []goNostr.Event

	mu       sync.Mutex
	received []goNostr.Event
}

func newTestRelay(t *testing.T, accept bool, stored ...goNostr.Event) *testRelay {
	r := &testRelay{
		accept: accept,
		stored: stored,
	}
	r.srv = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.srv.Close)

	return r
}

func (r *testRelay) URL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func (r *testRelay) Received() []goNostr.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]goNostr.Event(nil), r.received...)
}

func (r *testRelay) serve(w http.ResponseWriter, req *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(req, w)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		msg, _, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}

		var envelope []json.RawMessage
		if err := json.Unmarshal(msg, &envelope); err != nil || len(envelope) < 2 {
			continue
		}
		var label string
		if err := json.Unmarshal(envelope[0], &label); err != nil {
			continue
		}

		switch label {
		case "EVENT":
			var e goNostr.Event
			if err := json.Unmarshal(envelope[1], &e); err != nil {
				continue
			}
			r.mu.Lock()
			r.received = append(r.received, e)
			r.mu.Unlock()

			reason := ""
			if !r.accept {
				reason = "blocked: not accepting events"
			}
			if err := r.write(conn, "OK", e.ID, r.accept, reason); err != nil {
				return
			}
		case "REQ":
			var subID string
			if err := json.Unmarshal(envelope[1], &subID); err != nil {
				continue
			}
			for i := range r.stored {
				if err := r.write(conn, "EVENT", subID, r.stored[i]); err != nil {
					return
				}
			}
			if err := r.write(conn, "EOSE", subID); err != nil {
				return
			}
		}
	}
}

func (r *testRelay) write(conn io.Writer, msg ...any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return wsutil.WriteServerText(conn, b)
}
