package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Tracker holds everything needed to talk to the issue tracker's REST API.
// Exactly one credential form is expected: an Email+APIToken pair, a
// pre-encoded BasicToken, or a BearerToken for the admin endpoints.
type Tracker struct {
	BaseURL        string // e.g. https://example.atlassian.net
	AdminBaseURL   string // e.g. https://api.atlassian.com
	Email          string // account email for the basic pair
	APIToken       string // API token for the basic pair
	BasicToken     string // pre-encoded value for "Authorization: Basic <token>"
	BearerToken    string // token for the admin restore-access endpoint
	OrgID          string // directory org for restore-access
	ServiceDeskURL string // ticket portal linked from not-found result text
	CommentFormat  string // "rich" or "simple"
	HTTPTimeout    time.Duration
}

type Pipeline struct {
	ScriptPath      string   // task script to execute; empty selects the built-in restore flow
	ScriptArgs      []string // extra arguments for the task script
	ResultFile      string   // where the task result text lands
	ReportOnFailure bool     // post the failure text as a comment before failing the run
}

type NSQ struct {
	NsqdTCPAddr     string // e.g. nsqd:4150
	LookupHTTPAddr  string // e.g. http://nsqlookupd:4161
	DispatchTopic   string // NSQ topic carrying external dispatch events
	DispatchChannel string // NSQ channel name for dispatcher instances
}

type Dispatcher struct {
	HTTPPort string // dispatcher metrics/health port
}

type Config struct {
	AppName    string
	Tracker    Tracker
	Pipeline   Pipeline
	NSQ        NSQ
	Dispatcher Dispatcher
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseScriptArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			args = append(args, p)
		}
	}
	return args
}

func FromEnv() Config {
	return Config{
		AppName: getenv("APP_NAME", "issuerelay"),
		Tracker: Tracker{
			BaseURL:        strings.TrimRight(getenv("TRACKER_BASE_URL", ""), "/"),
			AdminBaseURL:   strings.TrimRight(getenv("TRACKER_ADMIN_BASE_URL", "https://api.atlassian.com"), "/"),
			Email:          getenv("TRACKER_EMAIL", ""),
			APIToken:       getenv("TRACKER_API_TOKEN", ""),
			BasicToken:     getenv("TRACKER_BASIC_TOKEN", ""),
			BearerToken:    getenv("TRACKER_BEARER_TOKEN", ""),
			OrgID:          getenv("TRACKER_ORG_ID", ""),
			ServiceDeskURL: getenv("TRACKER_SERVICE_DESK_URL", ""),
			CommentFormat:  getenv("TRACKER_COMMENT_FORMAT", "rich"),
			HTTPTimeout:    getenvDuration("TRACKER_HTTP_TIMEOUT", 15*time.Second),
		},
		Pipeline: Pipeline{
			ScriptPath:      getenv("TASK_SCRIPT", ""),
			ScriptArgs:      parseScriptArgs(getenv("TASK_SCRIPT_ARGS", "")),
			ResultFile:      getenv("RESULT_FILE", "result.txt"),
			ReportOnFailure: getenvBool("REPORT_ON_FAILURE", true),
		},
		NSQ: NSQ{
			NsqdTCPAddr:     getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr:  getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			DispatchTopic:   getenv("NSQ_DISPATCH_TOPIC", "dispatches"),
			DispatchChannel: getenv("NSQ_DISPATCH_CHANNEL", "dispatchers"),
		},
		Dispatcher: Dispatcher{
			HTTPPort: ":" + getenv("DISPATCHER_HTTP_PORT", "8084"),
		},
	}
}

// IssueURL builds the issue update endpoint for a key.
func (t Tracker) IssueURL(issueKey string) string {
	return fmt.Sprintf("%s/rest/api/3/issue/%s", t.BaseURL, issueKey)
}

// UserSearchURL builds one page of the paginated user search endpoint.
func (t Tracker) UserSearchURL(startAt, maxResults int) string {
	return fmt.Sprintf("%s/rest/api/3/users/search?startAt=%d&maxResults=%d", t.BaseURL, startAt, maxResults)
}

// RestoreAccessURL builds the directory restore-access endpoint for an account.
func (t Tracker) RestoreAccessURL(accountID string) string {
	return fmt.Sprintf("%s/admin/v1/orgs/%s/directory/users/%s/restore-access", t.AdminBaseURL, t.OrgID, accountID)
}
