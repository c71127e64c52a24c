package vcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// APIBasePath is the root of the cloudapi REST surface
	APIBasePath = "/cloudapi/1.0.0"
	// AccessTokenHeader is the alternative header carrying the session token
	AccessTokenHeader = "X-VMWARE-VCLOUD-ACCESS-TOKEN"
	// RequestIDHeader correlates a request with control-plane logs
	RequestIDHeader = "X-Request-ID"

	defaultPageSize    = 128
	defaultRefreshSkew = time.Minute
)

// ErrNoToken is returned when a login response carries no session token
var ErrNoToken = errors.New("session response did not include an access token")

// Client implements Session over the control plane's JSON REST API
type Client struct {
	baseURL     *url.URL
	org         string
	username    string
	password    string
	httpClient  *http.Client
	logger      *slog.Logger
	userAgent   string
	refreshSkew time.Duration
	now         func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRefreshSkew sets how long before token expiry the client logs in again.
func WithRefreshSkew(d time.Duration) ClientOption {
	return func(c *Client) {
		c.refreshSkew = d
	}
}

// NewClient creates a client for the control plane at endpoint. Credentials are
// used lazily on the first request.
func NewClient(endpoint, org, username, password string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}

	c := &Client{
		baseURL:     u,
		org:         org,
		username:    username,
		password:    password,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      slog.Default(),
		userAgent:   "vcompute",
		refreshSkew: defaultRefreshSkew,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login opens a new session and stores its token.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/sessions"), nil)
	if err != nil {
		return err
	}
	user := c.username
	if c.org != "" {
		user = c.username + "@" + c.org
	}
	req.SetBasicAuth(user, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to open session: %w", decodeError(resp))
	}

	token := resp.Header.Get(AccessTokenHeader)
	if token == "" {
		token = strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return ErrNoToken
	}

	c.token = token
	c.expiresAt = tokenExpiry(token)
	c.logger.Debug("Opened control-plane session", "user", user, "expiresAt", c.expiresAt)
	return nil
}

// tokenExpiry reads the exp claim of a JWT session token. Opaque tokens and
// tokens without exp yield the zero time, which disables proactive refresh.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// currentToken returns a usable token, logging in first when needed.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiring := !c.expiresAt.IsZero() && c.now().Add(c.refreshSkew).After(c.expiresAt)
	if c.token == "" || expiring {
		if err := c.loginLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + APIBasePath + path
}

// do performs an authenticated request. A 401 triggers one re-login and retry.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.currentToken(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set(RequestIDHeader, uuid.NewString())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			_ = resp.Body.Close()
			c.logger.Debug("Session rejected, logging in again", "method", method, "path", path)
			c.invalidate(token)
			continue
		}

		err = handleResponse(resp, out)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		return nil
	}
}

func handleResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError converts a non-2xx response into an *Error
func decodeError(resp *http.Response) error {
	apiErr := &Error{}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if len(data) == 0 || json.Unmarshal(data, apiErr) != nil {
		apiErr = &Error{Message: strings.TrimSpace(string(data))}
	}
	apiErr.StatusCode = resp.StatusCode
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// page mirrors the paginated envelope returned by list endpoints
type page[T any] struct {
	ResultTotal int64 `json:"resultTotal"`
	PageCount   int   `json:"pageCount"`
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	Values      []T   `json:"values"`
}

// listAll walks every page of a list endpoint
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for p := 1; ; p++ {
		var pg page[T]
		q := url.Values{}
		q.Set("page", fmt.Sprint(p))
		q.Set("pageSize", fmt.Sprint(defaultPageSize))
		if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &pg); err != nil {
			return nil, err
		}
		all = append(all, pg.Values...)
		if p >= pg.PageCount || len(pg.Values) == 0 {
			return all, nil
		}
	}
}

func (c *Client) taskCall(ctx context.Context, method, path string, body any) (*Task, error) {
	task := &Task{}
	if err := c.do(ctx, method, path, body, task); err != nil {
		return nil, err
	}
	return task, nil
}

func escape(id string) string {
	return url.PathEscape(id)
}

// GetTask fetches the current status of a task.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	task := &Task{}
	if err := c.do(ctx, http.MethodGet, "/tasks/"+escape(id), nil, task); err != nil {
		return nil, err
	}
	return task, nil
}

// GetVApp fetches a vApp including its member VMs and task history.
func (c *Client) GetVApp(ctx context.Context, id string) (*VApp, error) {
	vapp := &VApp{}
	if err := c.do(ctx, http.MethodGet, "/vapps/"+escape(id), nil, vapp); err != nil {
		return nil, err
	}
	return vapp, nil
}

// ListVApps lists references to the vApps in a VDC.
func (c *Client) ListVApps(ctx context.Context, vdcID string) ([]Reference, error) {
	return listAll[Reference](ctx, c, "/vdcs/"+escape(vdcID)+"/vapps")
}

// DeployAndPowerOnVApp deploys the vApp and powers on all member VMs.
func (c *Client) DeployAndPowerOnVApp(ctx context.Context, id string) (*Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/vapps/"+escape(id)+"/actions/deploy", map[string]bool{"powerOn": true})
}

// PowerOffVApp powers off all member VMs of the vApp.
func (c *Client) PowerOffVApp(ctx context.Context, id string) (*Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/vapps/"+escape(id)+"/actions/powerOff", nil)
}

// UndeployVApp undeploys the vApp.
func (c *Client) UndeployVApp(ctx context.Context, id string) (*Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/vapps/"+escape(id)+"/actions/undeploy", nil)
}

// DeleteVApp deletes the vApp and its member VMs.
func (c *Client) DeleteVApp(ctx context.Context, id string) (*Task, error) {
	return c.taskCall(ctx, http.MethodDelete, "/vapps/"+escape(id), nil)
}

type cloneResponse struct {
	VApp *VApp `json:"vapp"`
	Task *Task `json:"task"`
}

// CloneVApp copies a vApp into a VDC under a new name.
func (c *Client) CloneVApp(ctx context.Context, params CloneParams) (*VApp, *Task, error) {
	var resp cloneResponse
	if err := c.do(ctx, http.MethodPost, "/vdcs/"+escape(params.VDCID)+"/actions/cloneVApp", params, &resp); err != nil {
		return nil, nil, err
	}
	return resp.VApp, resp.Task, nil
}

// GetVM fetches a VM.
func (c *Client) GetVM(ctx context.Context, id string) (*VM, error) {
	vm := &VM{}
	if err := c.do(ctx, http.MethodGet, "/vms/"+escape(id), nil, vm); err != nil {
		return nil, err
	}
	return vm, nil
}

func (c *Client) vmAction(ctx context.Context, id, action string) (*Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/vms/"+escape(id)+"/actions/"+action, nil)
}

// PowerOnVM powers on a VM.
func (c *Client) PowerOnVM(ctx context.Context, id string) (*Task, error) {
	return c.vmAction(ctx, id, "powerOn")
}

// PowerOffVM powers off a VM.
func (c *Client) PowerOffVM(ctx context.Context, id string) (*Task, error) {
	return c.vmAction(ctx, id, "powerOff")
}

// RebootVM reboots a VM.
func (c *Client) RebootVM(ctx context.Context, id string) (*Task, error) {
	return c.vmAction(ctx, id, "reboot")
}

// UndeployVM undeploys a VM.
func (c *Client) UndeployVM(ctx context.Context, id string) (*Task, error) {
	return c.vmAction(ctx, id, "undeploy")
}

// UpdateGuestCustomization replaces the guest customization section of a VM.
func (c *Client) UpdateGuestCustomization(ctx context.Context, id string, section GuestCustomizationSection) (*Task, error) {
	return c.taskCall(ctx, http.MethodPut, "/vms/"+escape(id)+"/guestCustomizationSection", section)
}

// UpdateNetworkConnections replaces the network connection section of a VM.
func (c *Client) UpdateNetworkConnections(ctx context.Context, id string, section NetworkConnectionSection) (*Task, error) {
	return c.taskCall(ctx, http.MethodPut, "/vms/"+escape(id)+"/networkConnectionSection", section)
}

// UpdateCPUCount sets the number of virtual CPUs of a VM.
func (c *Client) UpdateCPUCount(ctx context.Context, id string, count int) (*Task, error) {
	return c.taskCall(ctx, http.MethodPut, "/vms/"+escape(id)+"/virtualHardwareSection/cpu", map[string]int{"count": count})
}

// UpdateMemoryMB sets the memory size of a VM.
func (c *Client) UpdateMemoryMB(ctx context.Context, id string, memoryMB int) (*Task, error) {
	return c.taskCall(ctx, http.MethodPut, "/vms/"+escape(id)+"/virtualHardwareSection/memory", map[string]int{"memoryMB": memoryMB})
}

// GetTemplate fetches a vApp template.
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	tmpl := &Template{}
	if err := c.do(ctx, http.MethodGet, "/vappTemplates/"+escape(id), nil, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// InstantiateTemplate creates a new vApp from a template. The returned vApp is
// usually still UNRESOLVED.
func (c *Client) InstantiateTemplate(ctx context.Context, params InstantiateParams) (*VApp, error) {
	var vapp *VApp
	if err := c.do(ctx, http.MethodPost, "/vdcs/"+escape(params.VDCID)+"/actions/instantiateTemplate", params, &vapp); err != nil {
		return nil, err
	}
	return vapp, nil
}

// ListNetworks lists references to the organization's networks.
func (c *Client) ListNetworks(ctx context.Context) ([]Reference, error) {
	return listAll[Reference](ctx, c, "/orgs/current/networks")
}

// GetNetwork fetches an org network.
func (c *Client) GetNetwork(ctx context.Context, id string) (*Network, error) {
	network := &Network{}
	if err := c.do(ctx, http.MethodGet, "/networks/"+escape(id), nil, network); err != nil {
		return nil, err
	}
	return network, nil
}

// GetOrg fetches the organization the session belongs to.
func (c *Client) GetOrg(ctx context.Context) (*Org, error) {
	org := &Org{}
	if err := c.do(ctx, http.MethodGet, "/orgs/current", nil, org); err != nil {
		return nil, err
	}
	return org, nil
}

// ListCatalogs lists the catalogs visible to the organization.
func (c *Client) ListCatalogs(ctx context.Context) ([]Catalog, error) {
	return listAll[Catalog](ctx, c, "/catalogs")
}

// ListVDCs lists the organization's VDCs.
func (c *Client) ListVDCs(ctx context.Context) ([]VDC, error) {
	return listAll[VDC](ctx, c, "/vdcs")
}

var _ Session = (*Client)(nil)
