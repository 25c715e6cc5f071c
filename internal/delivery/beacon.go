package delivery

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// beacon fires a one-shot, fire-and-forget send of the payload: no retry,
// no response handling, detached from every caller context so shutdown
// cannot cancel a send already in flight. Purely redundant — the envelope
// it carries is already queued.
func (e *Engine) beacon(payload []byte) {
	e.stats.beacons.Add(1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(e.cfg.AuthHeader, e.cfg.AuthToken)

		resp, err := e.client.Do(req)
		if err != nil {
			e.logger.Debug("delivery: beacon failed", "error", err)
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
}
