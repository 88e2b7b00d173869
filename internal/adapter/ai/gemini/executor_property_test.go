package gemini

import (
	"context"
	"net/http/httptest"
	"testing"

	backoff "github.com/cenkalti/backoff/v4"
	"pgregory.net/rapid"

	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/service/keypool"
)

func TestExecute_NeverExceedsMaxRetries(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxRetries := rapid.IntRange(1, 5).Draw(rt, "max_retries")
		nKeys := rapid.IntRange(1, 4).Draw(rt, "keys")
		statuses := rapid.SliceOfN(rapid.SampledFrom([]int{200, 429, 429, 500, 403}), 1, 10).Draw(rt, "statuses")

		responses := make([]cannedResponse, len(statuses))
		for i, s := range statuses {
			switch s {
			case 200:
				responses[i] = cannedResponse{status: 200, body: okBody("ok")}
			case 403:
				responses[i] = cannedResponse{status: 403, body: `{"error":{"code":403,"message":"billing disabled","status":"PERMISSION_DENIED"}}`}
			default:
				responses[i] = cannedResponse{status: s}
			}
		}
		fp := &fakeProvider{responses: responses}
		srv := httptest.NewServer(fp)
		defer srv.Close()

		mgr := keypool.NewManager(keypool.NewMemoryStore())
		for i := 0; i < nKeys; i++ {
			if _, err := mgr.AddCredential(context.Background(), "k"+string(rune('a'+i)), "v"+string(rune('a'+i))); err != nil {
				rt.Fatal(err)
			}
		}
		timer := &recordingTimer{}
		exec := New(config.ExecutorConfig{
			BaseURL: srv.URL,
			Model:   "m",
			Policy:  domain.RetryPolicy{MaxRetries: maxRetries},
		}, mgr, WithHTTPClient(srv.Client()), WithTimer(func() backoff.Timer { return timer }))

		_, log, _ := exec.ExecuteWithLog(context.Background(), "prompt", "")
		if n := len(fp.Calls()); n > maxRetries {
			rt.Fatalf("%d network calls with max_retries=%d", n, maxRetries)
		}
		if log.Calls() != len(fp.Calls()) {
			rt.Fatalf("attempt log has %d entries for %d calls", log.Calls(), len(fp.Calls()))
		}
		for i := 1; i < len(log); i++ {
			prev, cur := log[i-1], log[i]
			if prev.Wait > 0 && cur.Wait > 0 && prev.Outcome == cur.Outcome && cur.Wait < prev.Wait {
				rt.Fatalf("wait decreased between attempts %d and %d: %v", i-1, i, log.Waits())
			}
		}
	})
}
