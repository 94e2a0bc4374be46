// Package remote wraps the task-assignment API: identity lookup, task listing
// and claim submission. Every failure is returned as a classified *Error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// DefaultUserAgent identifies requests as a desktop browser; the API rejects
// obvious automation clients.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultPageSize is the number of tasks requested per list query.
const DefaultPageSize = 20

// Logical operations reported in Error.Op.
const (
	OpUserInfo  = "user_info"
	OpListTasks = "list_tasks"
	OpClaim     = "claim"
)

// Client wraps HTTP calls to the task API.
type Client struct {
	baseURL    string
	cookie     string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new API client that presents cookie on every request.
func NewClient(baseURL, cookie string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		cookie:    cookie,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUserInfo returns the identity behind the session cookie.
func (c *Client) FetchUserInfo(ctx context.Context) (*models.UserIdentity, error) {
	env, err := c.do(ctx, OpUserInfo, http.MethodGet, "/edushop/user/common/info", nil)
	if err != nil {
		return nil, err
	}
	if *env.Errno != ErrnoOK {
		return nil, authError(OpUserInfo, 0, errors.Newf("errno %d: %s", *env.Errno, env.Errmsg))
	}
	if !env.hasData() {
		return nil, protocolError(OpUserInfo, http.StatusOK, errors.New("missing data"))
	}

	var data userInfoData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, protocolError(OpUserInfo, http.StatusOK, errors.Wrap(err, "decode user info"))
	}
	return &models.UserIdentity{
		Username:  data.UserName,
		RoleNames: data.RoleNames,
		RoleLinks: data.RoleLinks,
		Avatar:    data.Avatar,
	}, nil
}

// ListTasks returns the claimable tasks matching filter. An empty slice means
// nothing is claimable right now.
func (c *Client) ListTasks(ctx context.Context, filter models.Filter) ([]models.TaskDescriptor, error) {
	taskType := filter.TaskType
	if taskType == "" {
		taskType = models.TaskTypeAudit
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	q := url.Values{}
	q.Set("pn", strconv.Itoa(page))
	q.Set("rn", strconv.Itoa(pageSize))
	q.Set("clueID", filter.ClueID)
	q.Set("clueType", strconv.Itoa(filter.ClueType))
	q.Set("step", strconv.Itoa(filter.Step))
	q.Set("subject", strconv.Itoa(filter.Subject))
	path := "/edushop/question/" + url.PathEscape(string(taskType)) + "/list?" + q.Encode()

	env, err := c.do(ctx, OpListTasks, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if *env.Errno != ErrnoOK {
		return nil, applicationError(OpListTasks, *env.Errno, env.Errmsg)
	}
	if !env.hasData() {
		return nil, protocolError(OpListTasks, http.StatusOK, errors.New("missing data"))
	}

	var data taskListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, protocolError(OpListTasks, http.StatusOK, errors.Wrap(err, "decode task list"))
	}
	if data.List == nil {
		return []models.TaskDescriptor{}, nil
	}
	return data.List, nil
}

// SubmitClaim claims ids from the pool selected by taskType. The outcome's
// claimed count never exceeds len(ids); a server reporting more is a
// protocol error.
func (c *Client) SubmitClaim(ctx context.Context, ids []int64, taskType models.TaskType) (*models.ClaimOutcome, error) {
	if len(ids) == 0 {
		return &models.ClaimOutcome{}, nil
	}

	var body interface{}
	if taskType == models.TaskTypeProduce {
		body = produceClaimRequest{ClueIDs: ids}
	} else {
		body = auditClaimRequest{TaskIDs: ids}
	}
	path := "/edushop/question/" + taskType.CommitEndpoint() + "/claim"

	env, err := c.do(ctx, OpClaim, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if *env.Errno != ErrnoOK {
		return nil, applicationError(OpClaim, *env.Errno, env.Errmsg)
	}

	claimed, err := claimedCount(env.Data, len(ids))
	if err != nil {
		return nil, protocolError(OpClaim, http.StatusOK, err)
	}
	return &models.ClaimOutcome{
		Requested: len(ids),
		Claimed:   claimed,
		Errno:     *env.Errno,
		Message:   env.Errmsg,
	}, nil
}

// claimedCount reads data.success, falling back to requested when the server
// does not report a count.
func claimedCount(data json.RawMessage, requested int) (int, error) {
	if len(data) == 0 {
		return requested, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		// null, arrays and scalars carry no count
		return requested, nil
	}
	raw, ok := obj["success"]
	if !ok {
		return requested, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return requested, nil
	}
	if n < 0 || n > int64(requested) {
		return 0, errors.Newf("server reported %d claimed for %d requested", n, requested)
	}
	return int(n), nil
}

// do performs one request and decodes the response envelope. The returned
// envelope always has a non-nil Errno.
func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, protocolError(op, 0, errors.Wrap(err, "encode request"))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, protocolError(op, 0, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Cookie", c.cookie)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(op, 0, errors.Wrapf(err, "%s %s", method, path))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(op, resp.StatusCode, errors.Wrap(err, "read response body"))
	}

	if err := classifyStatus(op, resp.StatusCode, data); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, protocolError(op, resp.StatusCode, errors.Wrapf(err, "decode response: %s", snippet(data)))
	}
	if env.Errno == nil {
		return nil, protocolError(op, resp.StatusCode, errors.Newf("response has no errno: %s", snippet(data)))
	}
	return &env, nil
}

func classifyStatus(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authError(op, status, nil)
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return networkError(op, status, nil)
	default:
		return protocolError(op, status, errors.Newf("unexpected status: %s", snippet(body)))
	}
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit-3]) + "..."
}
