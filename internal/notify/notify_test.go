package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/report"
)

func TestParseAddressList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a@x.com, B@x.com; a@x.com c@x.com", []string{"a@x.com", "B@x.com", "c@x.com"}},
		{"", nil},
		{"  ,; ", nil},
		{"A@x.com;a@X.com", []string{"A@x.com"}},
		{"\ta@x.com\n", []string{"a@x.com"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseAddressList(tt.in)); diff != "" {
			t.Errorf("ParseAddressList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

type recordingChat struct {
	posts  int
	failOn map[int]bool
}

func (r *recordingChat) Post(_ context.Context, _ string, _ any) error {
	r.posts++
	if r.failOn[r.posts] {
		return errors.New("502 bad gateway")
	}
	return nil
}

type recordingMail struct {
	sent []Mail
	err  error
}

func (r *recordingMail) Send(_ context.Context, m Mail) (string, error) {
	r.sent = append(r.sent, m)
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

type countingObserver map[string]int

func (c countingObserver) ObserveDelivery(sink, result string) {
	c[sink+"/"+result]++
}

func cards(n int) []report.Message {
	out := make([]report.Message, n)
	for i := range out {
		out[i] = report.SimpleCard("t", "x")
	}
	return out
}

func TestChatSinkContinuesAfterFailure(t *testing.T) {
	chat := &recordingChat{failOn: map[int]bool{1: true}}
	sink := &ChatSink{Endpoint: "https://hook", Transport: chat}

	sent, err := sink.Send(context.Background(), cards(3), zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "chat page 1/3") {
		t.Fatalf("err = %v", err)
	}
	if sent != 2 || chat.posts != 3 {
		t.Fatalf("sent=%d posts=%d, want 2 and 3", sent, chat.posts)
	}
}

func TestEmailSinkSkips(t *testing.T) {
	mail := &recordingMail{}
	tests := []struct {
		name string
		sink *EmailSink
	}{
		{"nil", nil},
		{"disabled", &EmailSink{Enabled: false, From: "a@x.com", To: "b@x.com", Transport: mail}},
		{"no sender", &EmailSink{Enabled: true, To: "b@x.com", Transport: mail}},
		{"no recipients", &EmailSink{Enabled: true, From: "a@x.com", To: " ; ", Transport: mail}},
		{"no transport", &EmailSink{Enabled: true, From: "a@x.com", To: "b@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.sink.Mail("s", report.Email{}); ok {
				t.Fatal("expected skip")
			}
		})
	}
}

func TestDispatcherSkipsUnconfiguredSinks(t *testing.T) {
	chat := &recordingChat{}
	mail := &recordingMail{}
	obs := countingObserver{}
	d := NewDispatcher(
		&ChatSink{Transport: chat},
		&EmailSink{Enabled: true, To: "b@x.com", Transport: mail},
		obs, zap.NewNop(),
	)

	out, err := d.Dispatch(context.Background(), Rendered{Cards: cards(2), Subject: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.ChatSkipped || !out.EmailSkipped || chat.posts != 0 || len(mail.sent) != 0 {
		t.Fatalf("unexpected delivery: %+v posts=%d mails=%d", out, chat.posts, len(mail.sent))
	}
	if obs["chat/skipped"] != 1 || obs["email/skipped"] != 1 {
		t.Fatalf("observer = %v", obs)
	}
}

func TestDispatcherSinksFailIndependently(t *testing.T) {
	chat := &recordingChat{failOn: map[int]bool{2: true}}
	mail := &recordingMail{err: errors.New("ses throttled")}
	obs := countingObserver{}
	d := NewDispatcher(
		&ChatSink{Endpoint: "https://hook", Transport: chat},
		&EmailSink{Enabled: true, From: "a@x.com", To: "b@x.com, c@x.com", CC: "d@x.com", Transport: mail},
		obs, zap.NewNop(),
	)

	out, err := d.Dispatch(context.Background(), Rendered{
		Cards:   cards(3),
		Subject: "EC2 Utilization Alerts - 3 instance(s)",
		Email:   report.Email{Text: "t", HTML: "<p>h</p>"},
	})
	if err == nil || !strings.Contains(err.Error(), "ses throttled") || !strings.Contains(err.Error(), "chat page 2/3") {
		t.Fatalf("err = %v", err)
	}
	if out.ChatPages != 2 || out.ChatFailed != 1 || chat.posts != 3 {
		t.Fatalf("delivery = %+v posts=%d", out, chat.posts)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("mails = %d", len(mail.sent))
	}
	m := mail.sent[0]
	if diff := cmp.Diff([]string{"b@x.com", "c@x.com", "d@x.com"}, m.Recipients()); diff != "" {
		t.Fatalf("recipients mismatch (-want +got):\n%s", diff)
	}
	if obs["chat/failed"] != 1 || obs["email/failed"] != 1 {
		t.Fatalf("observer = %v", obs)
	}
}

func TestTeamsWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewTeamsWebhook()
	if err := hook.Post(context.Background(), srv.URL, report.SimpleCard("t", "x")); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "message" {
		t.Fatalf("payload = %v", got)
	}
}

func TestTeamsWebhookStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "card too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	err := NewTeamsWebhook().Post(context.Background(), srv.URL, report.SimpleCard("t", "x"))
	if err == nil || !strings.Contains(err.Error(), "413") || !strings.Contains(err.Error(), "card too large") {
		t.Fatalf("err = %v", err)
	}
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{MessageId: aws.String("0100-abc")}, nil
}

func TestSESMailer(t *testing.T) {
	client := &fakeSES{}
	id, err := NewSESMailerFromClient(client).Send(context.Background(), Mail{
		From:    "ops@x.com",
		To:      []string{"a@x.com"},
		Subject: "subj",
		Text:    "text",
		HTML:    "<p>html</p>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "0100-abc" {
		t.Fatalf("id = %q", id)
	}
	in := client.input
	if aws.ToString(in.Source) != "ops@x.com" || in.Destination.CcAddresses != nil || in.Destination.BccAddresses != nil {
		t.Fatalf("unexpected input: %+v", in)
	}
	if aws.ToString(in.Message.Body.Html.Data) != "<p>html</p>" || aws.ToString(in.Message.Subject.Charset) != "UTF-8" {
		t.Fatalf("unexpected message: %+v", in.Message)
	}
}

func TestSMTPMailer(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m := NewSMTPMailer("mail.example.com", 587, "user", "secret")
	m.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	id, err := m.Send(context.Background(), Mail{
		From:    "ops@x.com",
		To:      []string{"a@x.com"},
		BCC:     []string{"hidden@x.com"},
		Subject: "EC2 Utilization Alerts - 1 instance(s)",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotAddr != "mail.example.com:587" || gotAuth == nil {
		t.Fatalf("addr=%q auth=%v", gotAddr, gotAuth)
	}
	if diff := cmp.Diff([]string{"a@x.com", "hidden@x.com"}, gotTo); diff != "" {
		t.Fatalf("envelope mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{
		"Message-ID: " + id,
		"To: a@x.com\r\n",
		"multipart/alternative",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
	if strings.Contains(gotMsg, "hidden@x.com") {
		t.Fatal("bcc leaked into headers")
	}
}

func TestSMTPMailerNeedsHost(t *testing.T) {
	if _, err := NewSMTPMailer("", 25, "", "").Send(context.Background(), Mail{}); err == nil {
		t.Fatal("expected error")
	}
}
