package powerschool

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"schoolportal-backend/lib/htmlutil"
	"schoolportal-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/powerschool")

// Client owns one authenticated guardian session against the portal. It
// is not safe for concurrent use; the orchestrator gives each student
// pipeline its own client.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	username string
	password string
	loggedIn bool
}

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	// transient transport errors and server-side failures are retried with
	// exponential backoff, anything else surfaces immediately
	client.SetRetryCount(3)
	client.SetRetryWaitTime(time.Second)
	client.SetRetryMaxWaitTime(time.Second * 10)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= 500
	})

	telemetry.InstrumentResty(client, "scrapers/powerschool/http")

	c := &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
	}
	return c, nil
}

var challengeMarkers = []string{
	"g-recaptcha",
	"captcha",
	"multi-factor",
	"verification code",
}

func looksLikeChallenge(doc *goquery.Document) bool {
	if doc.Find("div.g-recaptcha, iframe[src*='recaptcha']").Length() > 0 {
		return true
	}
	text := strings.ToLower(doc.Find("form").Text())
	for _, m := range challengeMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func isLoginForm(doc *goquery.Document) bool {
	return doc.Find("input#fieldAccount, input[name=account]").Length() > 0
}

// Login authenticates the guardian account. Credential rejection and
// interactive challenges are fatal and must not be retried by callers.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/public/home.html")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return fmt.Errorf("%w: %s", ErrPortalUnreachable, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return err
	}

	if !isLoginForm(doc) {
		span.SetStatus(codes.Error, "login form not found")
		return fmt.Errorf("%w: login form not found", ErrPortalUnreachable)
	}
	if looksLikeChallenge(doc) {
		span.SetStatus(codes.Error, ErrChallengeRequired.Error())
		return ErrChallengeRequired
	}

	form := map[string]string{
		"account": c.username,
		"pw":      c.password,
	}
	// hidden inputs (pstoken, contextData, ...) must round-trip or the
	// portal rejects the post
	doc.Find("form input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		form[name] = input.AttrOr("value", "")
	})

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post("/guardian/home.html")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return fmt.Errorf("%w: %s", ErrPortalUnreachable, err)
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse post-login html")
		return err
	}

	if looksLikeChallenge(doc) {
		span.SetStatus(codes.Error, ErrChallengeRequired.Error())
		return ErrChallengeRequired
	}
	if isLoginForm(doc) {
		span.SetStatus(codes.Error, ErrInvalidCredentials.Error())
		return ErrInvalidCredentials
	}

	c.loggedIn = true
	return nil
}

// FetchPage fetches a logical page and returns its raw markup. A session
// that expired mid-run is re-authenticated exactly once before the error
// surfaces to the caller.
func (c *Client) FetchPage(ctx context.Context, page PageKey, params url.Values) ([]byte, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("client:FetchPage:%s", page))
	defer span.End()

	if !c.loggedIn {
		return nil, &FetchError{Page: page, Kind: FetchSessionExpired, Err: fmt.Errorf("not logged in")}
	}

	body, ferr := c.fetchOnce(ctx, page, params)
	if ferr != nil && ferr.Kind == FetchSessionExpired {
		span.AddEvent("session expired, re-authenticating")
		c.loggedIn = false
		err := c.Login(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "re-authentication failed")
			return nil, ferr
		}
		body, ferr = c.fetchOnce(ctx, page, params)
	}
	if ferr != nil {
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Kind.String())
		return nil, ferr
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context, page PageKey, params url.Values) ([]byte, *FetchError) {
	path, ok := pagePaths[page]
	if !ok {
		return nil, &FetchError{Page: page, Kind: FetchPageNotFound, Err: fmt.Errorf("unknown page key")}
	}

	req := c.Http.R().SetContext(ctx)
	for k, vals := range params {
		for _, v := range vals {
			req.SetQueryParam(k, v)
		}
	}

	res, err := req.Get(path)
	if err != nil {
		kind := FetchUnexpectedStatus
		if isTimeout(err) {
			kind = FetchTimeout
		}
		return nil, &FetchError{Page: page, Kind: kind, Err: err}
	}

	switch {
	case res.StatusCode() == 404:
		return nil, &FetchError{Page: page, Kind: FetchPageNotFound, Status: 404}
	case res.StatusCode() >= 400:
		return nil, &FetchError{Page: page, Kind: FetchUnexpectedStatus, Status: res.StatusCode()}
	}

	// an expired session redirects guardian pages back to the public
	// login form
	finalUrl := res.RawResponse.Request.URL
	if strings.Contains(finalUrl.Path, "/public/") || bytes.Contains(res.Body(), []byte("fieldAccount")) {
		return nil, &FetchError{Page: page, Kind: FetchSessionExpired}
	}

	return res.Body(), nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "Client.Timeout")
}

// StudentTab is one child on a multi-student guardian account.
type StudentTab struct {
	ExternalId string
	Name       string
	Href       string
}

var studentSwitchRegex = regexp.MustCompile(`sw=(\d+)`)

// Students parses the student tab bar off the home page. Accounts with a
// single child often render no tab bar at all; callers treat an empty
// result as "the current student".
func (c *Client) Students(ctx context.Context) ([]StudentTab, error) {
	ctx, span := tracer.Start(ctx, "client:Students")
	defer span.End()

	body, err := c.FetchPage(ctx, PageHome, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch home page")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	var tabs []StudentTab
	for _, anchor := range htmlutil.GetAnchors(doc.Find("ul#students-selector a, a[href*='sw=']")) {
		groups := studentSwitchRegex.FindStringSubmatch(anchor.Href)
		if len(groups) < 2 || anchor.Name == "" {
			continue
		}
		tabs = append(tabs, StudentTab{
			ExternalId: groups[1],
			Name:       anchor.Name,
			Href:       anchor.Href,
		})
	}
	return tabs, nil
}

// SwitchStudent selects which child subsequent page fetches refer to.
func (c *Client) SwitchStudent(ctx context.Context, tab StudentTab) error {
	ctx, span := tracer.Start(ctx, "client:SwitchStudent")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(tab.Href)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to switch student")
		return err
	}
	if res.StatusCode() >= 400 {
		return &FetchError{Page: PageHome, Kind: FetchUnexpectedStatus, Status: res.StatusCode()}
	}
	return nil
}
