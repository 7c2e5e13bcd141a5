package coze

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, func() string { return "test-token" })
}

func TestCreateChatStreamingResponse(t *testing.T) {
	var gotReq ChatRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data:{\"type\":\"answer\",\"content\":\"hi\"}\n\ndata:[DONE]\n\n")
	})

	res, err := c.CreateChat(context.Background(), ChatRequest{
		BotID:           "bot-1",
		UserID:          "user-1",
		Stream:          true,
		AutoSaveHistory: true,
		AdditionalMessages: []Message{
			{Role: "user", Content: "[]", ContentType: ContentTypeText},
		},
	})
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	if res.Stream == nil {
		t.Fatal("Stream = nil for an event-stream response")
	}
	defer res.Stream.Close()

	body, _ := io.ReadAll(res.Stream)
	if !strings.Contains(string(body), "answer") {
		t.Errorf("stream body = %q", body)
	}
	if gotReq.BotID != "bot-1" || !gotReq.Stream || !gotReq.AutoSaveHistory {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.AdditionalMessages) != 1 {
		t.Errorf("additional_messages = %+v", gotReq.AdditionalMessages)
	}
}

func TestCreateChatJSONResponse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":4100,"msg":"auth expired","data":{"id":"c1","conversation_id":"v1"}}`)
	})

	res, err := c.CreateChat(context.Background(), ChatRequest{Stream: true})
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	if res.Stream != nil {
		t.Error("Stream non-nil for a JSON response")
	}
	if res.Code != CodeAuthExpired || res.Msg != "auth expired" {
		t.Errorf("envelope = code=%d msg=%q", res.Code, res.Msg)
	}
	if res.Chat == nil || res.Chat.ID != "c1" || res.Chat.ConversationID != "v1" {
		t.Errorf("chat data = %+v", res.Chat)
	}
}

func TestTokenRequestSuccess(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var form map[string]string
		json.NewDecoder(r.Body).Decode(&form)
		if form["grant_type"] != "refresh_token" || form["refresh_token"] != "old-r" {
			t.Errorf("form = %v", form)
		}
		fmt.Fprint(w, `{"access_token":"new-a","refresh_token":"new-r"}`)
	})

	pair, err := c.RefreshToken(context.Background(), "client-1", "old-r")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if pair.AccessToken != "new-a" || pair.RefreshToken != "new-r" {
		t.Errorf("pair = %+v", pair)
	}
}

func TestTokenRequestRejected(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error_message":"invalid grant"}`)
	})

	_, err := c.RefreshToken(context.Background(), "client-1", "bad")
	if err == nil || !strings.Contains(err.Error(), "invalid grant") {
		t.Fatalf("RefreshToken() error = %v, want invalid grant", err)
	}
}

func TestTokenRequestEmptyBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := c.ExchangeCode(context.Background(), "client-1", "code", "ver", "http://127.0.0.1/cb")
	if err == nil || !strings.Contains(err.Error(), "no access token") {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
}

func TestEncodeContentTextOnly(t *testing.T) {
	content, ct, err := EncodeContent("hello", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ct != ContentTypeText {
		t.Errorf("content type = %q, want text", ct)
	}

	var parts []ContentPart
	if err := json.Unmarshal([]byte(content), &parts); err != nil {
		t.Fatalf("content not JSON: %v", err)
	}
	if len(parts) != 1 || parts[0].Type != "text" || parts[0].Text != "hello" {
		t.Errorf("parts = %+v", parts)
	}
}

func TestEncodeContentWithAttachments(t *testing.T) {
	content, ct, err := EncodeContent("see files", []string{"f1"}, []string{"i1"})
	if err != nil {
		t.Fatal(err)
	}
	if ct != ContentTypeObjectString {
		t.Errorf("content type = %q, want object_string", ct)
	}

	var parts []ContentPart
	if err := json.Unmarshal([]byte(content), &parts); err != nil {
		t.Fatal(err)
	}
	want := []ContentPart{
		{Type: "text", Text: "see files"},
		{Type: "file", FileID: "f1"},
		{Type: "image", FileID: "i1"},
	}
	if len(parts) != len(want) {
		t.Fatalf("parts = %+v", parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d = %+v, want %+v", i, parts[i], want[i])
		}
	}
}
