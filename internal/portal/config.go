// Package portal talks to the road-police e-queue ("hqb" flow): anti-forgery
// bootstrap, login, liveness probe and nearest-day lookup.
package portal

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL     = "https://roadpolice.am"
	DefaultEntryPath   = "/hy/hqb"
	DefaultLoginPath   = "/hy/hqb-sw/login"
	DefaultProfilePath = "/hy/hqb-profile"
	DefaultNearestPath = "/hy/hqb-nearest-day"
	DefaultXSRFCookie  = "XSRF-TOKEN"
	DefaultBranchID    = 39
	DefaultServiceID   = 300692
	DefaultTimeout     = 20 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) slotwatch"

	formContentType = "application/x-www-form-urlencoded; charset=UTF-8"
	ajaxMarker      = "XMLHttpRequest"
)

type Config struct {
	BaseURL     string
	EntryPath   string
	LoginPath   string
	ProfilePath string
	NearestPath string

	// XSRFCookie is the cookie carrying the anti-forgery token.
	XSRFCookie string
	// SessionCookie, when set, must appear (as a substring of a cookie name)
	// after the entry page fetch.
	SessionCookie string

	BranchID  int
	ServiceID int
	Timeout   time.Duration
	UserAgent string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		EntryPath:   DefaultEntryPath,
		LoginPath:   DefaultLoginPath,
		ProfilePath: DefaultProfilePath,
		NearestPath: DefaultNearestPath,
		XSRFCookie:  DefaultXSRFCookie,
		BranchID:    DefaultBranchID,
		ServiceID:   DefaultServiceID,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
	}
}

// normalized fills zero fields with defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.EntryPath == "" {
		c.EntryPath = d.EntryPath
	}
	if c.LoginPath == "" {
		c.LoginPath = d.LoginPath
	}
	if c.ProfilePath == "" {
		c.ProfilePath = d.ProfilePath
	}
	if c.NearestPath == "" {
		c.NearestPath = d.NearestPath
	}
	if c.XSRFCookie == "" {
		c.XSRFCookie = d.XSRFCookie
	}
	if c.BranchID == 0 {
		c.BranchID = d.BranchID
	}
	if c.ServiceID == 0 {
		c.ServiceID = d.ServiceID
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}

func (c Config) url(path string) string { return c.BaseURL + path }

// Credentials are the login form fields, sent verbatim.
type Credentials struct {
	PSN       string
	Phone     string
	Country   string
	LoginType string
}

func (c Credentials) Form() url.Values {
	country := c.Country
	if country == "" {
		country = "374"
	}
	loginType := c.LoginType
	if loginType == "" {
		loginType = "hqb"
	}
	return url.Values{
		"psn":          {c.PSN},
		"phone_number": {c.Phone},
		"country":      {country},
		"login_type":   {loginType},
	}
}

func nearestForm(cfg Config, date string) url.Values {
	return url.Values{
		"branchId":  {strconv.Itoa(cfg.BranchID)},
		"serviceId": {strconv.Itoa(cfg.ServiceID)},
		"date":      {date},
	}
}
