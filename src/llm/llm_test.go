package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	oldEndpoint := endpoint
	endpoint = srv.URL
	t.Cleanup(func() {
		endpoint = oldEndpoint
		srv.Close()
	})
	Init(&Config{APIKey: "test_key", Model: "test_model"})
}

func successHandler(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, text)
	}
}

func TestQueryNotInitialized(t *testing.T) {
	config = nil
	if _, err := Query(context.Background(), "prompt", []byte{1}); err == nil {
		t.Error("Expected error when not initialized")
	}
}

func TestQueryRequiresPrompt(t *testing.T) {
	Init(&Config{APIKey: "k", Model: "m"})
	if _, err := Query(context.Background(), "", []byte{1}); err == nil {
		t.Error("Expected error for empty prompt")
	}
}

func TestQuerySuccess(t *testing.T) {
	withServer(t, successHandler("x^2+y^2=z^2"))
	text, err := Query(context.Background(), "math prompt", []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if text != "x^2+y^2=z^2" {
		t.Errorf("Unexpected text %q", text)
	}
}

func TestQueryStripsCodeFences(t *testing.T) {
	withServer(t, successHandler("```latex\n\\frac{a}{b}\n```"))
	text, err := Query(context.Background(), "math prompt", []byte{1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if text != "\\frac{a}{b}" {
		t.Errorf("Expected fences stripped, got %q", text)
	}
}

func TestQueryEmptySentinel(t *testing.T) {
	withServer(t, successHandler("NA"))
	_, err := Query(context.Background(), "math prompt", []byte{1})
	if KindOf(err) != KindEmptyResult {
		t.Errorf("Expected empty_result, got %v (err=%v)", KindOf(err), err)
	}
}

func TestQueryStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindQuota},
		{http.StatusPaymentRequired, KindQuota},
		{http.StatusInternalServerError, KindNetwork},
		{http.StatusBadGateway, KindNetwork},
	}
	for _, c := range cases {
		withServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		})
		_, err := Query(context.Background(), "p", []byte{1})
		if KindOf(err) != c.kind {
			t.Errorf("Status %d: expected %v, got %v", c.status, c.kind, KindOf(err))
		}
	}
}

func TestQueryMalformedBody(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	})
	_, err := Query(context.Background(), "p", []byte{1})
	if KindOf(err) != KindMalformedResponse {
		t.Errorf("Expected malformed_response, got %v", KindOf(err))
	}
}

func TestQueryNoChoices(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})
	_, err := Query(context.Background(), "p", []byte{1})
	if KindOf(err) != KindMalformedResponse {
		t.Errorf("Expected malformed_response, got %v", KindOf(err))
	}
}

func TestQueryTimeout(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		successHandler("late")(w, r)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := Query(ctx, "p", []byte{1})
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("Expected timeout, got %v (err=%v)", KindOf(err), err)
	}
}

func TestQuerySingleRequestNoRetry(t *testing.T) {
	calls := 0
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, _ = Query(context.Background(), "p", []byte{1})
	if calls != 1 {
		t.Errorf("Expected exactly one request, got %d", calls)
	}
}

func TestCleanResponse(t *testing.T) {
	cases := []struct{ in, out string }{
		{"plain", "plain"},
		{"  padded \n", "padded"},
		{"```latex\nx+1\n```", "x+1"},
		{"```\nline1\nline2\n```", "line1\nline2"},
	}
	for _, c := range cases {
		if got := CleanResponse(c.in); got != c.out {
			t.Errorf("CleanResponse(%q) = %q, expected %q", c.in, got, c.out)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(newError(KindAuth, nil)) != KindAuth {
		t.Error("KindOf failed to unwrap classified error")
	}
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("KindOf should map bare deadline errors to timeout")
	}
	if KindOf(errors.New("boom")) != KindNetwork {
		t.Error("KindOf should default to network")
	}
}
