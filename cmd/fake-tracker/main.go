package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
)

// fake-tracker stands in for the issue tracker during local runs: it accepts
// comment PUTs, serves a small user directory, and answers restore-access.
// FAIL_FIRST_N makes the first N comment PUTs answer 500 so retry-free
// behavior can be observed end to end.

type userRecord struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
}

type server struct {
	mu         sync.Mutex
	failFirstN int
	reqCount   int
	users      []userRecord
	pageSize   int
}

func main() {
	srv := &server{pageSize: 50}

	if v := os.Getenv("FAIL_FIRST_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			srv.failFirstN = n
		}
	}
	// DIRECTORY_USERS is a comma list of accountId:email pairs
	if v := os.Getenv("DIRECTORY_USERS"); v != "" {
		srv.users = parseUsers(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("/rest/api/3/issue/", srv.handleIssue)
	mux.HandleFunc("/rest/api/3/users/search", srv.handleUserSearch)
	mux.HandleFunc("/admin/v1/orgs/", srv.handleRestoreAccess)

	addr := ":8085"
	if v := os.Getenv("HTTP_PORT"); v != "" {
		addr = ":" + strings.TrimPrefix(v, ":")
	}
	log.Printf("fake-tracker listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// parseUsers reads "acct-1:a@example.com,acct-2:b@example.com".
func parseUsers(raw string) []userRecord {
	var users []userRecord
	for _, pair := range strings.Split(raw, ",") {
		id, email, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || id == "" || email == "" {
			continue
		}
		users = append(users, userRecord{AccountID: id, EmailAddress: email})
	}
	return users
}

func (s *server) handleIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	issueKey := strings.TrimPrefix(r.URL.Path, "/rest/api/3/issue/")
	if issueKey == "" || strings.Contains(issueKey, "/") {
		http.Error(w, "bad issue key", http.StatusNotFound)
		return
	}
	if r.Header.Get("Authorization") == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	text, err := commentText(body)
	if err != nil {
		log.Printf("fake-tracker rejected comment on %s: %v", issueKey, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.reqCount++
	count := s.reqCount
	s.mu.Unlock()

	// Simulate flakiness: first N requests -> 500
	if count <= s.failFirstN {
		log.Printf("FAILING (%d/%d) comment on %s", count, s.failFirstN, issueKey)
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	log.Printf("fake-tracker OK comment on %s body=%q", issueKey, truncate(text, 160))
	w.WriteHeader(http.StatusNoContent)
}

// commentText validates the comment envelope shape and returns the text run.
// Both the rich document body and the plain string body are accepted.
func commentText(body []byte) (string, error) {
	var payload struct {
		Update struct {
			Comment []struct {
				Add struct {
					Body json.RawMessage `json:"body"`
				} `json:"add"`
			} `json:"comment"`
		} `json:"update"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("body is not valid JSON: %w", err)
	}
	if len(payload.Update.Comment) == 0 {
		return "", fmt.Errorf("no comment operations in update")
	}
	raw := payload.Update.Comment[0].Add.Body
	if len(raw) == 0 {
		return "", fmt.Errorf("comment has no body")
	}

	// Plain string body
	var simple string
	if err := json.Unmarshal(raw, &simple); err == nil {
		if simple == "" {
			return "", fmt.Errorf("comment body is empty")
		}
		return simple, nil
	}

	// Rich document body
	var doc struct {
		Type    string `json:"type"`
		Version int    `json:"version"`
		Content []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("comment body is neither string nor document: %w", err)
	}
	if doc.Type != "doc" || doc.Version != 1 {
		return "", fmt.Errorf("document body has type %q version %d", doc.Type, doc.Version)
	}
	if len(doc.Content) == 0 || len(doc.Content[0].Content) == 0 {
		return "", fmt.Errorf("document body has no text content")
	}
	text := doc.Content[0].Content[0].Text
	if text == "" {
		return "", fmt.Errorf("document text is empty")
	}
	return text, nil
}

func (s *server) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	if maxResults <= 0 {
		maxResults = s.pageSize
	}

	page := []userRecord{}
	if startAt < len(s.users) {
		end := startAt + maxResults
		if end > len(s.users) {
			end = len(s.users)
		}
		page = s.users[startAt:end]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func (s *server) handleRestoreAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/restore-access") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	log.Printf("fake-tracker OK restore-access %s", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"message":"access restored"}`))
}

// truncate truncates a string to the specified length and adds an ellipsis if truncated
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
