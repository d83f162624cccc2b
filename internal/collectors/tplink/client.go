package tplink

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

func newCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(nil)
}

const httpTimeout = 5 * time.Second

// Client speaks the router's HTTP JSON-RPC-ish admin protocol, per
// SPEC_FULL.md §4.5, grounded on
// original_source/tplink_scraper/tplink_interface.py.
type Client struct {
	address  string
	username string
	password string
	http     *http.Client
	stok     string
}

// NewClient creates a Client for the given router address and admin
// credentials. No network I/O happens until an API call is made.
func NewClient(address, username, password string) *Client {
	jar, _ := newCookieJar()
	return &Client{
		address:  address,
		username: username,
		password: password,
		http:     &http.Client{Timeout: httpTimeout, Jar: jar},
	}
}

type loginResult struct {
	ErrorCode string `json:"error_code"`
	Result    struct {
		Password []string `json:"password"`
		Stok     string   `json:"stok"`
	} `json:"result"`
}

// authenticate performs the two-step RSA-login handshake and stores the
// session token stok for subsequent API calls.
func (c *Client) authenticate() error {
	getKeyResp, err := c.post("cgi-bin/luci/;stok=/login?form=login", `{"method":"get"}`, "webpages/login.html")
	if err != nil {
		return fmt.Errorf("tplink: fetch login key: %w", err)
	}
	var keyResult loginResult
	if err := json.Unmarshal(getKeyResp, &keyResult); err != nil {
		return fmt.Errorf("tplink: parse login key response: %w", err)
	}
	if keyResult.ErrorCode != "0" || len(keyResult.Result.Password) != 2 {
		return fmt.Errorf("tplink: login key request rejected (error_code=%s)", keyResult.ErrorCode)
	}

	n, ok := new(big.Int).SetString(keyResult.Result.Password[0], 16)
	if !ok {
		return fmt.Errorf("tplink: malformed RSA modulus")
	}
	e, ok := new(big.Int).SetString(keyResult.Result.Password[1], 16)
	if !ok {
		return fmt.Errorf("tplink: malformed RSA exponent")
	}

	cipherBytes := encryptNonstandard(n, e, []byte(c.password))
	cipherHex := hex.EncodeToString(cipherBytes)

	loginBody, err := json.Marshal(map[string]any{
		"method": "login",
		"params": map[string]string{
			"username": c.username,
			"password": cipherHex,
		},
	})
	if err != nil {
		return fmt.Errorf("tplink: encode login body: %w", err)
	}

	loginResp, err := c.post("cgi-bin/luci/;stok=/login?form=login", string(loginBody), "webpages/login.html")
	if err != nil {
		return fmt.Errorf("tplink: login request: %w", err)
	}
	var lr loginResult
	if err := json.Unmarshal(loginResp, &lr); err != nil {
		return fmt.Errorf("tplink: parse login response: %w", err)
	}
	if lr.ErrorCode != "0" || lr.Result.Stok == "" {
		return fmt.Errorf("tplink: login rejected (error_code=%s)", lr.ErrorCode)
	}
	c.stok = lr.Result.Stok
	return nil
}

// query performs one authenticated API call against adminPath, lazily
// authenticating first if no session token is held yet.
func (c *Client) query(adminPath, data string) ([]byte, error) {
	if c.stok == "" {
		if err := c.authenticate(); err != nil {
			return nil, err
		}
	}
	path := fmt.Sprintf("cgi-bin/luci/;stok=%s/admin/%s", c.stok, adminPath)
	return c.post(path, data, "webpages/index.html")
}

func (c *Client) post(path, data, referer string) ([]byte, error) {
	// The router's luci endpoint expects the JSON payload itself, urlencoded,
	// as the literal POST body (not a key=value form field).
	encoded := url.QueryEscape(data)

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/%s", c.address, path), bytes.NewBufferString(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/javascript, */*")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", fmt.Sprintf("http://%s/%s", c.address, referer))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DHCPClient is one row of the active DHCP lease table.
type DHCPClient struct {
	LeaseTime string `json:"leasetime"`
	Name      string `json:"name"`
	MAC       string `json:"macaddr"`
	IP        string `json:"ipaddr"`
	Interface string `json:"interface"`
}

// DHCPReservation is one row of the static reservation table.
type DHCPReservation struct {
	MAC       string `json:"mac"`
	Note      string `json:"note"`
	Bind      string `json:"bind"`
	Enable    string `json:"enable"`
	IP        string `json:"ip"`
	Interface string `json:"interface"`
}

// TrafficRow is one row of the per-IP traffic counters table.
type TrafficRow struct {
	Addr    string `json:"addr"`
	RXBytes int64  `json:"rx_bytes,string"`
	TXBytes int64  `json:"tx_bytes,string"`
	RXBps   int64  `json:"rx_bps,string"`
	TXBps   int64  `json:"tx_bps,string"`
	RXPps   int64  `json:"rx_pps,string"`
	TXPps   int64  `json:"tx_pps,string"`
}

type listResponse[T any] struct {
	ErrorCode string `json:"error_code"`
	Result    []T    `json:"result"`
}

// GetDHCPClients returns the active DHCP lease table.
func (c *Client) GetDHCPClients() ([]DHCPClient, error) {
	raw, err := c.query("dhcps?form=client", `{"method":"get","params":{}}`)
	if err != nil {
		return nil, err
	}
	var resp listResponse[DHCPClient]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("tplink: parse dhcp clients: %w", err)
	}
	return resp.Result, nil
}

// GetDHCPReservations returns the static reservation table.
func (c *Client) GetDHCPReservations() ([]DHCPReservation, error) {
	raw, err := c.query("dhcps?form=reservation", `{"method":"get","params":{}}`)
	if err != nil {
		return nil, err
	}
	var resp listResponse[DHCPReservation]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("tplink: parse dhcp reservations: %w", err)
	}
	return resp.Result, nil
}

// GetTrafficStats returns the per-IP traffic counter table.
func (c *Client) GetTrafficStats() ([]TrafficRow, error) {
	raw, err := c.query("ipstats?form=list", `{"method":"get","params":{}}`)
	if err != nil {
		return nil, err
	}
	var resp listResponse[TrafficRow]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("tplink: parse traffic stats: %w", err)
	}
	return resp.Result, nil
}
