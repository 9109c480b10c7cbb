package bfhltransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bfhl/bfhlsvc/pkg/ai"
	"github.com/bfhl/bfhlsvc/pkg/bfhlendpoint"
	"github.com/bfhl/bfhlsvc/pkg/service"
)

const testEmail = "someone@example.edu"

func newTestServer(t *testing.T, answerer ai.Answerer, opts Options) *httptest.Server {
	t.Helper()
	if opts.Email == "" {
		opts.Email = testEmail
	}
	var (
		logger    = log.NewNopLogger()
		svc       = service.New(answerer, time.Second, service.LoggingMiddleware(logger))
		endpoints = bfhlendpoint.New(svc, logger, discard.NewHistogram())
		handler   = NewHTTPHandler(endpoints, opts, logger)
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// response decodes the envelope keeping data as raw JSON so that numbers are
// compared by their exact text.
type response struct {
	IsSuccess     *bool           `json:"is_success"`
	OfficialEmail string          `json:"official_email"`
	Data          json.RawMessage `json:"data"`
	Error         *string         `json:"error"`
}

func do(t *testing.T, method, url, body string) (int, response, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type: want application/json, have %q", ct)
	}
	var (
		r   response
		raw map[string]json.RawMessage
	)
	if err := json.Unmarshal(buf, &r); err != nil {
		t.Fatalf("%s: %v", buf, err)
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		t.Fatalf("%s: %v", buf, err)
	}
	return resp.StatusCode, r, raw
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	var first string
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		buf, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if want, have := http.StatusOK, resp.StatusCode; want != have {
			t.Fatalf("want %d, have %d", want, have)
		}
		body := strings.TrimSpace(string(buf))
		if want := `{"is_success":true,"official_email":"` + testEmail + `"}`; body != want {
			t.Fatalf("want %s, have %s", want, body)
		}
		if i == 0 {
			first = body
		} else if body != first {
			t.Errorf("health response changed: %s then %s", first, body)
		}
	}
}

func TestBFHLSuccess(t *testing.T) {
	srv := newTestServer(t, ai.AnswererFunc(func(_ context.Context, q string) (string, error) {
		if !strings.Contains(q, "France") {
			return "", errors.New("unexpected question")
		}
		return "Paris", nil
	}), Options{})

	for _, tc := range []struct {
		body string
		data string
	}{
		{`{"fibonacci": 5}`, `[0,1,1,2,3]`},
		{`{"fibonacci": 0}`, `[]`},
		{`{"fibonacci": 1}`, `[0]`},
		{`{"prime": [2,3,4,5,9,11]}`, `[2,3,5,11]`},
		{`{"prime": [4, 6, 7.5]}`, `[]`},
		{`{"prime": [2, 1e20, 3]}`, `[2,3]`},
		{`{"prime": [18446744073709551557, 4]}`, `[18446744073709551557]`},
		{`{"hcf": [12,18,24]}`, `6`},
		{`{"hcf": [0, 0]}`, `0`},
		{`{"hcf": [-4]}`, `-4`},
		{`{"lcm": [4,6]}`, `12`},
		{`{"AI": "What is the capital of France?"}`, `"Paris"`},
	} {
		code, r, raw := do(t, http.MethodPost, srv.URL+"/bfhl", tc.body)
		if want, have := http.StatusOK, code; want != have {
			t.Errorf("%s: want %d, have %d", tc.body, want, have)
			continue
		}
		if r.IsSuccess == nil || !*r.IsSuccess {
			t.Errorf("%s: is_success not true", tc.body)
		}
		if want, have := testEmail, r.OfficialEmail; want != have {
			t.Errorf("%s: official_email: want %q, have %q", tc.body, want, have)
		}
		if want, have := tc.data, string(r.Data); want != have {
			t.Errorf("%s: data: want %s, have %s", tc.body, want, have)
		}
		if _, ok := raw["error"]; ok {
			t.Errorf("%s: unexpected error field", tc.body)
		}
	}
}

func TestBFHLFibonacciIsExact(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	_, r, _ := do(t, http.MethodPost, srv.URL+"/bfhl", `{"fibonacci": 100}`)
	if want := "218922995834555169026]"; !strings.HasSuffix(string(r.Data), want) {
		t.Errorf("want data ending %s, have %s", want, r.Data)
	}
}

func TestBFHLFailure(t *testing.T) {
	srv := newTestServer(t, ai.AnswererFunc(func(context.Context, string) (string, error) {
		return "", errors.New(`upstream said: {"error":"secret stack"}`)
	}), Options{MaxBodyBytes: 64})

	for _, tc := range []struct {
		method string
		path   string
		body   string
		code   int
		msg    string
	}{
		{"POST", "/bfhl", `{"fibonacci": -1}`, 400, "fibonacci value must be a non-negative integer"},
		{"POST", "/bfhl", `{"foo": 1}`, 400, "invalid key: foo"},
		{"POST", "/bfhl", `{"fibonacci": 1, "lcm": [1]}`, 400, "request must contain exactly one key"},
		{"POST", "/bfhl", `{}`, 400, "request must contain exactly one key"},
		{"POST", "/bfhl", `[1,2]`, 400, "request body must be a JSON object"},
		{"POST", "/bfhl", `not json`, 400, "request body must be a JSON object"},
		{"POST", "/bfhl", `{"prime": "2,3"}`, 400, "prime input must be an array of numbers"},
		{"POST", "/bfhl", `{"hcf": []}`, 400, "hcf input must be a non-empty array of numbers"},
		{"POST", "/bfhl", `{"lcm": [0, 0]}`, 400, "lcm: lcm of zero and zero is undefined"},
		{"POST", "/bfhl", `{"AI": 42}`, 400, "AI input must be a string"},
		{"POST", "/bfhl", `{"AI": "Who wrote Hamlet?"}`, 500, "AI service failed"},
		{"POST", "/bfhl", `{"prime": [` + strings.Repeat("1,", 40) + `1]}`, 400, "request body exceeds 64 bytes"},
		{"GET", "/bfhl", ``, 405, "method not allowed"},
		{"GET", "/nowhere", ``, 404, "route not found"},
	} {
		code, r, raw := do(t, tc.method, srv.URL+tc.path, tc.body)
		name := fmt.Sprintf("%s %s %s", tc.method, tc.path, tc.body)
		if want, have := tc.code, code; want != have {
			t.Errorf("%s: want %d, have %d", name, want, have)
		}
		if r.IsSuccess == nil || *r.IsSuccess {
			t.Errorf("%s: is_success not false", name)
		}
		if want, have := testEmail, r.OfficialEmail; want != have {
			t.Errorf("%s: official_email: want %q, have %q", name, want, have)
		}
		if r.Error == nil {
			t.Errorf("%s: missing error", name)
		} else if want, have := tc.msg, *r.Error; want != have {
			t.Errorf("%s: error: want %q, have %q", name, want, have)
		}
		if _, ok := raw["data"]; ok {
			t.Errorf("%s: unexpected data field", name)
		}
	}
}

func TestBFHLConcurrentRequests(t *testing.T) {
	srv := newTestServer(t, ai.AnswererFunc(func(_ context.Context, q string) (string, error) {
		return strings.Fields(q)[len(strings.Fields(q))-1], nil
	}), Options{})

	var g errgroup.Group
	for i := 1; i <= 40; i++ {
		i := i
		g.Go(func() error {
			body, want := fmt.Sprintf(`{"hcf": [%d, %d]}`, 6*i, 4*i), fmt.Sprint(2*i)
			if i%2 == 0 {
				body, want = fmt.Sprintf(`{"AI": "token%d"}`, i), fmt.Sprintf(`"token%d"`, i)
			}
			resp, err := http.Post(srv.URL+"/bfhl", "application/json", strings.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			var r response
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
				return err
			}
			if have := string(r.Data); have != want {
				return errors.Errorf("%s: want %s, have %s", body, want, have)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestFormatter(t *testing.T) {
	f := Formatter{Email: testEmail}
	for _, tc := range []struct {
		err  error
		code int
		want Envelope
	}{
		{service.ErrInvalidInput("bad"), 400, Envelope{OfficialEmail: testEmail, Error: "bad"}},
		{service.ErrUnknownOperation("x"), 400, Envelope{OfficialEmail: testEmail, Error: "invalid key: x"}},
		{service.ErrMalformedRequest("m"), 400, Envelope{OfficialEmail: testEmail, Error: "m"}},
		{service.ErrAIService(errors.New("raw payload")), 500, Envelope{OfficialEmail: testEmail, Error: "AI service failed"}},
		{errors.New("disk on fire"), 500, Envelope{OfficialEmail: testEmail, Error: "internal server error"}},
	} {
		code, env := f.Failure(tc.err)
		if code != tc.code {
			t.Errorf("%v: want %d, have %d", tc.err, tc.code, code)
		}
		if diff := cmp.Diff(tc.want, env); diff != "" {
			t.Errorf("%v: (-want +have)\n%s", tc.err, diff)
		}
	}
	if diff := cmp.Diff(Envelope{IsSuccess: true, OfficialEmail: testEmail, Data: int64(0)}, f.Success(int64(0))); diff != "" {
		t.Errorf("(-want +have)\n%s", diff)
	}
}

func TestZeroDataIsEncoded(t *testing.T) {
	buf, err := json.Marshal(Formatter{Email: testEmail}.Success(int64(0)))
	if err != nil {
		t.Fatal(err)
	}
	if want, have := `{"is_success":true,"official_email":"`+testEmail+`","data":0}`, string(buf); want != have {
		t.Errorf("want %s, have %s", want, have)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, nil, Options{CORSOrigin: "*"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/bfhl", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if want, have := http.StatusNoContent, resp.StatusCode; want != have {
		t.Errorf("preflight: want %d, have %d", want, have)
	}
	if want, have := "*", resp.Header.Get("Access-Control-Allow-Origin"); want != have {
		t.Errorf("preflight: want origin %q, have %q", want, have)
	}

	resp, err = http.Post(srv.URL+"/bfhl", "application/json", strings.NewReader(`{"lcm": [4, 6]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if want, have := "*", resp.Header.Get("Access-Control-Allow-Origin"); want != have {
		t.Errorf("want origin %q, have %q", want, have)
	}
}

func TestNoCORSByDefault(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if have := resp.Header.Get("Access-Control-Allow-Origin"); have != "" {
		t.Errorf("unexpected origin header %q", have)
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("no request ID assigned")
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/nowhere", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if want, have := "abc-123", resp.Header.Get(RequestIDHeader); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}
